package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// DesignType is the kind of user asset a scenario needs to be completed.
type DesignType string

const (
	DesignFrame      DesignType = "frame"
	DesignChandelier DesignType = "chandelier"
	DesignProduct    DesignType = "product"
	DesignScreen     DesignType = "screen"
	DesignApparel    DesignType = "apparel"
	DesignBillboard  DesignType = "billboard"
	DesignPoster     DesignType = "poster"
	DesignMug        DesignType = "mug"
	DesignLabel      DesignType = "label"
	DesignNone       DesignType = "none"
)

// RequiresAsset reports whether a scenario of this type needs an upload.
func (d DesignType) RequiresAsset() bool {
	return d != DesignNone
}

type Scenario struct {
	ID          string
	Title       string
	Description string
	Design      DesignType
	Subcategory string
	BasePrompt  string
}

type Category struct {
	Key       DesignType
	Title     string
	Scenarios []Scenario
}

type Style struct {
	ID          string
	Name        string
	Description string
}

type NamedOption struct {
	Key  string
	Name string
}

const (
	StyleNone           = "none"
	StyleBackgroundBlur = "background_blur"
	StyleQualityEnhance = "quality_enhance"
)

const DefaultAspectRatio = "1:1"

const (
	DefaultVariationCount = 3
	MaxVariationCount     = 9
)

var designOrder = []DesignType{
	DesignFrame,
	DesignChandelier,
	DesignProduct,
	DesignScreen,
	DesignApparel,
	DesignBillboard,
	DesignPoster,
	DesignMug,
	DesignLabel,
	DesignNone,
}

var categoryTitles = map[DesignType]string{
	DesignFrame:      "Frame Mockups",
	DesignChandelier: "Chandelier Mockups",
	DesignProduct:    "Product Mockups",
	DesignScreen:     "Screen & App Mockups",
	DesignApparel:    "Apparel Mockups",
	DesignBillboard:  "Billboard Mockups",
	DesignPoster:     "Poster Mockups",
	DesignMug:        "Coffee Mug Mockups",
	DesignLabel:      "Cosmetic & Label Mockups",
	DesignNone:       "Scene Only",
}

const placeholder = "a solid, vibrant magenta color (#FF00FF)"

var scenarios = []Scenario{
	{
		ID:          "SITTING_FRAME",
		Title:       "Woman Sitting with Frame",
		Description: "An elegant woman sitting in a stylish interior, holding a frame for your design.",
		Design:      DesignFrame,
		Subcategory: "interior",
		BasePrompt:  "DSLR photograph, fashion magazine style. An elegant woman sits in a chic, minimalist apartment with soft, natural light from a large window. She holds a large, simple, matte black frame. The interior of the frame is " + placeholder + " to serve as a placeholder. The frame is held flat, facing the camera. Shallow depth of field with a slightly blurred background.",
	},
	{
		ID:          "STANDING_FRAME",
		Title:       "Woman Standing with Frame",
		Description: "A professional shot of a woman standing and presenting a frame for your artwork.",
		Design:      DesignFrame,
		Subcategory: "studio",
		BasePrompt:  "Professional studio photograph, full-body shot. An elegant woman stands against a clean, neutral grey studio background. She holds a large, simple, matte black frame. The interior of the frame is " + placeholder + " as a clear placeholder. The frame is held perfectly flat towards the camera. The lighting is soft and even, mimicking a high-end fashion shoot.",
	},
	{
		ID:          "ARMCHAIR_FRAME",
		Title:       "Woman in Armchair with Frame",
		Description: "A cozy, high-end scene of a woman on an armchair holding a frame.",
		Design:      DesignFrame,
		Subcategory: "interior",
		BasePrompt:  "Cozy and luxurious interior photograph. An elegant woman relaxes in a plush, designer armchair. She holds a medium-sized, ornate wooden frame. The placeholder area inside the frame is " + placeholder + ". The scene is lit with warm, soft ambient light, creating a comfortable and sophisticated atmosphere. Shallow depth of field.",
	},
	{
		ID:          "ARMCHAIR_CHANDELIER",
		Title:       "Woman with Chandelier (Classic)",
		Description: "A woman in a classic interior points to a ceiling fixture, ready for your lighting design.",
		Design:      DesignChandelier,
		Subcategory: "interior",
		BasePrompt:  "Dramatic, elegant interior photograph. A woman in a stylish armchair in a luxurious room with a high ceiling looks up and points. Above her, hanging from the ceiling, is a simple placeholder light fixture emitting a distinct, vibrant magenta glow (#FF00FF). This is the object to be replaced. Moody, cinematic lighting.",
	},
	{
		ID:          "GALLERY_CHANDELIER",
		Title:       "Art Gallery Chandelier",
		Description: "A minimalist gallery with a central hanging installation for your lighting design.",
		Design:      DesignChandelier,
		Subcategory: "gallery",
		BasePrompt:  "Wide-angle photograph of a minimalist, white-walled art gallery with polished concrete floors. A stylishly dressed woman stands in the center, looking up in admiration. Hanging from the high ceiling is a single, glowing magenta (#FF00FF) placeholder object, positioned as a central art installation. Clean, diffuse gallery lighting with soft shadows.",
	},
	{
		ID:          "GOTHIC_CHANDELIER",
		Title:       "Gothic Library Chandelier",
		Description: "A vast manor library lit by a single placeholder fixture.",
		Design:      DesignChandelier,
		Subcategory: "interior",
		BasePrompt:  "Cinematic, atmospheric photograph. A woman in a long velvet gown stands in a vast gothic manor library with towering dark wood bookshelves and a vaulted ceiling. The only significant light source is a large, brightly glowing magenta (#FF00FF) placeholder object hanging from the center of the ceiling. She gestures gracefully towards it. High contrast, deep shadows.",
	},
	{
		ID:          "PATIO_CHANDELIER",
		Title:       "Bohemian Patio Chandelier",
		Description: "A warm dusk patio with a placeholder hanging from the pergola.",
		Design:      DesignChandelier,
		Subcategory: "outdoor",
		BasePrompt:  "Lifestyle photograph at dusk, golden hour lighting. A relaxed woman sits on an outdoor sofa on a bohemian patio with potted plants and string lights. Above the seating area, hanging from a wooden pergola, is a glowing magenta (#FF00FF) placeholder for a chandelier. Warm, cozy atmosphere with shallow depth of field.",
	},
	{
		ID:          "PRODUCT_SHELF",
		Title:       "Product on Store Shelf",
		Description: "Showcase your product on a brightly lit, modern retail shelf.",
		Design:      DesignProduct,
		Subcategory: "retail",
		BasePrompt:  "Commercial product photograph of a modern, brightly lit retail shelf made of light wood and metal. In the center of the shelf is a simple, solid magenta (#FF00FF) cube acting as a placeholder for a product. The background is filled with generic, out-of-focus products. Clean, minimalist aesthetic, sharp focus on the placeholder.",
	},
	{
		ID:          "OFFICE_SCREEN",
		Title:       "App on Office Screen",
		Description: "Display your app or website on a sleek monitor in a modern office.",
		Design:      DesignScreen,
		Subcategory: "office",
		BasePrompt:  "Professional photograph of a modern, sleek office. A high-end, bezel-less monitor sits on a clean wooden desk. The monitor is on and displays " + placeholder + " as a placeholder for a UI design. A window in the background provides soft natural light with subtle reflections on the screen. Background softly blurred.",
	},
	{
		ID:          "TSHIRT_MODEL",
		Title:       "T-Shirt on Model",
		Description: "Your design printed on a t-shirt worn by a model in a studio setting.",
		Design:      DesignApparel,
		Subcategory: "studio",
		BasePrompt:  "E-commerce fashion photograph. A model stands against a plain, off-white studio background wearing a high-quality plain t-shirt. On the front of the t-shirt is a large, perfectly centered, solid magenta (#FF00FF) rectangle serving as a placeholder for a design. Bright, even lighting with no harsh shadows.",
	},
	{
		ID:          "CITY_BILLBOARD",
		Title:       "Billboard in Neon City",
		Description: "Your ad on a giant billboard in a vibrant, futuristic city at night.",
		Design:      DesignBillboard,
		Subcategory: "outdoor",
		BasePrompt:  "Cinematic photograph of a bustling city street at night. Towering skyscrapers with glowing neon signs. One massive central digital billboard is on but displays only " + placeholder + " as a placeholder. Rain-slicked streets reflect the city lights, with light trails from passing cars.",
	},
	{
		ID:          "GALLERY_POSTER",
		Title:       "Poster on Loft Wall",
		Description: "Your poster hanging on a sunlit brick wall in an open loft.",
		Design:      DesignPoster,
		Subcategory: "interior",
		BasePrompt:  "Interior photograph of a sunlit industrial loft with an exposed brick wall, a low oak sideboard and a potted olive tree. A large unframed poster hangs on the wall, clipped at the top; its printable area is " + placeholder + " as a placeholder. Soft afternoon light with gentle shadows.",
	},
	{
		ID:          "COFFEE_MUG",
		Title:       "Logo on Coffee Mug",
		Description: "Your design on a mug held in a cozy cafe with a blurred background.",
		Design:      DesignMug,
		Subcategory: "cafe",
		BasePrompt:  "Professional cafe photograph with shallow depth of field. A person's hands hold a clean white ceramic coffee mug. On the side of the mug facing the camera is a perfectly centered, solid magenta (#FF00FF) rectangle as a placeholder for a logo. Warm out-of-focus cafe background with bokeh lights.",
	},
	{
		ID:          "COSMETIC_JAR",
		Title:       "Luxury Cosmetic Jar",
		Description: "Display your brand on a premium cosmetic jar on an elegant marble surface.",
		Design:      DesignLabel,
		Subcategory: "product",
		BasePrompt:  "Luxury product photograph. A premium, minimalist cosmetic jar sits on a white marble vanity next to delicate rose petals and subtle water droplets. The jar is unbranded, but the main label area is " + placeholder + ". Soft, diffuse, elegant lighting with highlights on the glossy surface.",
	},
	{
		ID:          "EMPTY_LOFT",
		Title:       "Empty Loft Backdrop",
		Description: "A clean, staged loft interior to use as a backdrop without any design.",
		Design:      DesignNone,
		Subcategory: "interior",
		BasePrompt:  "Architectural interior photograph of an empty, staged loft with tall windows, pale oak floors, a linen sofa and a single large plant. Calm, balanced composition with natural daylight and soft shadows.",
	},
}

var scenarioIndex = func() map[string]int {
	out := make(map[string]int, len(scenarios))
	for i, s := range scenarios {
		out[s.ID] = i
	}
	return out
}()

var aspectHints = map[string]string{
	"1:1":  "Square 1:1 composition, subject centered with balanced space on all sides.",
	"16:9": "Wide 16:9 landscape composition with the placeholder on a clear focal line.",
	"9:16": "Tall 9:16 portrait composition, placeholder in the upper-middle third.",
	"4:3":  "Classic 4:3 landscape composition with comfortable headroom.",
	"3:4":  "Vertical 3:4 composition framed like an editorial magazine page.",
}

var aspectOrder = []string{"1:1", "16:9", "9:16", "4:3", "3:4"}

var styles = []Style{
	{ID: StyleNone, Name: "None", Description: "Keep the composite exactly as generated."},
	{ID: "cinematic", Name: "Cinematic", Description: "Film-like color grading with dramatic contrast."},
	{ID: "vintage_film", Name: "Vintage Film", Description: "Warm analog tones with soft grain."},
	{ID: "watercolor", Name: "Watercolor", Description: "Soft painted washes with paper texture."},
	{ID: "noir", Name: "Noir", Description: "High-contrast black and white."},
	{ID: "pastel_dream", Name: "Pastel Dream", Description: "Airy pastel palette with a gentle glow."},
	{ID: "pop_art", Name: "Pop Art", Description: "Bold flat colors and halftone accents."},
}

var styleIndex = func() map[string]int {
	out := make(map[string]int, len(styles))
	for i, s := range styles {
		out[s.ID] = i
	}
	return out
}()

// LookupScenario returns the scenario with the given id.
func LookupScenario(id string) (Scenario, bool) {
	idx, ok := scenarioIndex[strings.TrimSpace(id)]
	if !ok {
		return Scenario{}, false
	}
	return scenarios[idx], true
}

// LookupCategory returns the category for a design type, including its scenarios.
func LookupCategory(key DesignType) (Category, bool) {
	title, ok := categoryTitles[key]
	if !ok {
		return Category{}, false
	}
	cat := Category{Key: key, Title: title}
	for _, s := range scenarios {
		if s.Design == key {
			cat.Scenarios = append(cat.Scenarios, s)
		}
	}
	if len(cat.Scenarios) == 0 {
		return Category{}, false
	}
	return cat, true
}

func Categories() []Category {
	out := make([]Category, 0, len(designOrder))
	for _, key := range designOrder {
		if cat, ok := LookupCategory(key); ok {
			out = append(out, cat)
		}
	}
	return out
}

func Scenarios() []Scenario {
	return append([]Scenario(nil), scenarios...)
}

func DefaultScenarioID() string {
	return scenarios[0].ID
}

func DesignTypes() []DesignType {
	return append([]DesignType(nil), designOrder...)
}

// Styles lists the selectable artistic styles; the first entry is StyleNone.
func Styles() []Style {
	return append([]Style(nil), styles...)
}

func HasStyle(id string) bool {
	_, ok := styleIndex[id]
	return ok
}

func AspectRatios() []NamedOption {
	names := map[string]string{
		"1:1":  "Square",
		"16:9": "Landscape",
		"9:16": "Portrait",
		"4:3":  "Classic",
		"3:4":  "Editorial",
	}
	out := make([]NamedOption, 0, len(aspectOrder))
	for _, key := range aspectOrder {
		out = append(out, NamedOption{Key: key, Name: names[key]})
	}
	return out
}

func VariationPresets() []int {
	return []int{3, 6, 9}
}

// NormalizeAspectRatio canonicalizes values like " 16 : 9" and reports
// whether the ratio is one the provider supports.
func NormalizeAspectRatio(value string) (string, bool) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "", false
	}
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return "", false
	}
	a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errA != nil || errB != nil || a <= 0 || b <= 0 {
		return "", false
	}
	norm := fmt.Sprintf("%d:%d", a, b)
	if _, ok := aspectHints[norm]; !ok {
		return "", false
	}
	return norm, true
}
