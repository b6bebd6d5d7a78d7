package models

// GalleryItem is one row of data/gallery.yaml.
type GalleryItem struct {
	Src   string   `yaml:"src" json:"src"`
	Alt   string   `yaml:"alt" json:"alt"`
	Title string   `yaml:"title" json:"title"`
	Date  string   `yaml:"date" json:"date"`
	Tags  []string `yaml:"tags" json:"tags"`
}
