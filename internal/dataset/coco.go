// Package dataset assembles approved annotations into a COCO detection file.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/visionforge/foundry/internal/detect"
)

// Info is the COCO info block.
type Info struct {
	Description string `json:"description"`
	Version     string `json:"version"`
	DateCreated string `json:"date_created"`
}

// Image is one COCO image entry.
type Image struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Annotation is one COCO detection annotation. BBox is pixel-space
// [x, y, width, height].
type Annotation struct {
	ID         int        `json:"id"`
	ImageID    int        `json:"image_id"`
	CategoryID int        `json:"category_id"`
	BBox       [4]float64 `json:"bbox"`
	Area       float64    `json:"area"`
	IsCrowd    int        `json:"iscrowd"`
}

// Category is one COCO category entry.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// File is a complete COCO detection dataset.
type File struct {
	Info        Info         `json:"info"`
	Images      []Image      `json:"images"`
	Annotations []Annotation `json:"annotations"`
	Categories  []Category   `json:"categories"`
}

// PixelBox converts a normalized [ymin,xmin,ymax,xmax] box in the 0-1000
// space to a pixel-space COCO [x,y,width,height] box for an image of the
// given dimensions.
func PixelBox(box detect.Box, width, height int) [4]float64 {
	w := float64(width)
	h := float64(height)
	return [4]float64{
		box.XMin() / detect.CoordMax * w,
		box.YMin() / detect.CoordMax * h,
		(box.XMax() - box.XMin()) / detect.CoordMax * w,
		(box.YMax() - box.YMin()) / detect.CoordMax * h,
	}
}

// Builder accumulates images and annotations, assigning sequential IDs.
// Categories for the caller's target labels are registered up front so
// category IDs are stable regardless of detection order; labels never seen
// before are registered on first use.
type Builder struct {
	file       File
	categories map[string]int
	nextImage  int
	nextAnn    int
}

// NewBuilder creates a builder with the given target labels as categories.
func NewBuilder(description string, labels []string) *Builder {
	b := &Builder{
		file: File{
			Info: Info{
				Description: description,
				Version:     "1.0",
				DateCreated: time.Now().UTC().Format(time.RFC3339),
			},
		},
		categories: make(map[string]int),
		nextImage:  1,
		nextAnn:    1,
	}
	for _, label := range labels {
		b.categoryID(label)
	}
	return b
}

func (b *Builder) categoryID(label string) int {
	if id, ok := b.categories[label]; ok {
		return id
	}
	id := len(b.categories) + 1
	b.categories[label] = id
	b.file.Categories = append(b.file.Categories, Category{ID: id, Name: label})
	return id
}

// AddImage registers one image and its approved records, returning the
// assigned image ID.
func (b *Builder) AddImage(fileName string, width, height int, records []detect.Record) int {
	imageID := b.nextImage
	b.nextImage++
	b.file.Images = append(b.file.Images, Image{
		ID:       imageID,
		FileName: fileName,
		Width:    width,
		Height:   height,
	})

	for _, rec := range records {
		bbox := PixelBox(rec.Box, width, height)
		b.file.Annotations = append(b.file.Annotations, Annotation{
			ID:         b.nextAnn,
			ImageID:    imageID,
			CategoryID: b.categoryID(rec.Label),
			BBox:       bbox,
			Area:       bbox[2] * bbox[3],
		})
		b.nextAnn++
	}
	return imageID
}

// File returns the dataset built so far.
func (b *Builder) File() *File {
	return &b.file
}

// WriteFile serializes the dataset to path as indented JSON.
func (b *Builder) WriteFile(path string) error {
	data, err := json.MarshalIndent(&b.file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize dataset: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}
