package composer

// Button action IDs.
const (
	ActionPackage1     = "package_1"
	ActionPackage5     = "package_5"
	ActionPackage50    = "package_50"
	ActionPackageGift  = "package_gift"
	ActionGenerateText = "main_generate_text"
	ActionGenerateImg  = "main_generate_image"
	ActionRecharge     = "main_recharge"
	ActionFormat16x9   = "format_16_9"
	ActionFormat9x16   = "format_9_16"
	ActionFormatBack   = "format_back"
	ActionMenuBack     = "menu_back"
)

// Package is a purchasable (or gifted) credit bundle.
type Package struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Credits int    `json:"credits"`
	Gift    bool   `json:"gift,omitempty"`
	Hidden  bool   `json:"hidden,omitempty"` // accepted but not offered on the keyboard
}

// DefaultPackages is the built-in catalogue.
func DefaultPackages() []Package {
	return []Package{
		{ID: ActionPackage1, Label: "1 video (10 seconds)", Credits: 1},
		{ID: ActionPackage5, Label: "5 videos (10 seconds)", Credits: 5},
		{ID: ActionPackage50, Label: "50 videos (10 seconds)", Credits: 50},
		{ID: ActionPackageGift, Label: "Claim a free video", Credits: 1, Gift: true, Hidden: true},
	}
}
