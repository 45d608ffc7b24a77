package preview

import (
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
)

// LoadStill decodes a JPEG or PNG frame grab from disk
func LoadStill(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// SaveStill writes a preview frame as JPEG
func SaveStill(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
}
