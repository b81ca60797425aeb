package director

// Manifest describes a project: the soundtrack and the clips in order.
type Manifest struct {
	Version string     `yaml:"version"`
	Audio   string     `yaml:"audio,omitempty"`
	Clips   []ClipSpec `yaml:"clips"`
}

// ClipSpec is one manifest entry. A PDF input without a page, or a directory
// input, expands into one clip per page or image.
type ClipSpec struct {
	Input    string                 `yaml:"input"`
	Page     int                    `yaml:"page,omitempty"`     // PDF page, 1-based
	Duration float64                `yaml:"duration,omitempty"` // seconds
	Start    *float64               `yaml:"start,omitempty"`    // explicit start time
	Effect   string                 `yaml:"effect,omitempty"`
	Params   map[string]interface{} `yaml:"params,omitempty"`
	Filter   string                 `yaml:"filter,omitempty"`
}

const ManifestVersion = "1.0"
