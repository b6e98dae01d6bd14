package web

import (
	"fmt"

	"ai-mockup-studio/internal/catalog"
	"ai-mockup-studio/internal/mockup"
	"ai-mockup-studio/internal/synthesis"
)

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type scenarioDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Design      string `json:"design"`
	Subcategory string `json:"subcategory,omitempty"`
	NeedsDesign bool   `json:"needs_design"`
}

type categoryDTO struct {
	Key       string        `json:"key"`
	Title     string        `json:"title"`
	Scenarios []scenarioDTO `json:"scenarios"`
}

type optionDTO struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type catalogResponse struct {
	Categories       []categoryDTO `json:"categories"`
	Styles           []optionDTO   `json:"styles"`
	AspectRatios     []optionDTO   `json:"aspect_ratios"`
	VariationPresets []int         `json:"variation_presets"`
	DefaultScenario  string        `json:"default_scenario"`
	MaxVariations    int           `json:"max_variations"`
}

type assetDTO struct {
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
}

type sessionResponse struct {
	ID             string    `json:"id"`
	ScenarioID     string    `json:"scenario_id"`
	Design         string    `json:"design"`
	AspectRatio    string    `json:"aspect_ratio"`
	VariationCount int       `json:"variation_count"`
	Style          string    `json:"style"`
	BackgroundBlur bool      `json:"background_blur"`
	HighQuality    bool      `json:"high_quality"`
	Stage          string    `json:"stage"`
	Pending        bool      `json:"pending"`
	Scenes         []string  `json:"scenes"`
	SelectedIndex  int       `json:"selected_index"`
	Asset          *assetDTO `json:"asset,omitempty"`
	Artifact       string    `json:"artifact,omitempty"`
	Error          *apiError `json:"error,omitempty"`
}

type scenarioRequest struct {
	ID string `json:"id"`
}

type categoryRequest struct {
	Key string `json:"key"`
}

type selectionRequest struct {
	Index *int `json:"index"`
}

// settingsRequest is a partial update; absent fields keep their value.
type settingsRequest struct {
	AspectRatio    *string `json:"aspect_ratio"`
	VariationCount *int    `json:"variation_count"`
	Style          *string `json:"style"`
	BackgroundBlur *bool   `json:"background_blur"`
	HighQuality    *bool   `json:"high_quality"`
}

func catalogFromRegistry() catalogResponse {
	out := catalogResponse{
		VariationPresets: catalog.VariationPresets(),
		DefaultScenario:  catalog.DefaultScenarioID(),
		MaxVariations:    catalog.MaxVariationCount,
	}
	for _, cat := range catalog.Categories() {
		c := categoryDTO{Key: string(cat.Key), Title: cat.Title}
		for _, sc := range cat.Scenarios {
			c.Scenarios = append(c.Scenarios, scenarioFrom(sc))
		}
		out.Categories = append(out.Categories, c)
	}
	for _, st := range catalog.Styles() {
		out.Styles = append(out.Styles, optionDTO{Key: st.ID, Name: st.Name})
	}
	for _, ar := range catalog.AspectRatios() {
		out.AspectRatios = append(out.AspectRatios, optionDTO{Key: ar.Key, Name: ar.Name})
	}
	return out
}

func scenarioFrom(sc catalog.Scenario) scenarioDTO {
	return scenarioDTO{
		ID:          sc.ID,
		Title:       sc.Title,
		Description: sc.Description,
		Design:      string(sc.Design),
		Subcategory: sc.Subcategory,
		NeedsDesign: sc.Design.RequiresAsset(),
	}
}

func sessionFrom(id string, snap mockup.Snapshot) sessionResponse {
	out := sessionResponse{
		ID:             id,
		ScenarioID:     snap.ScenarioID,
		AspectRatio:    snap.AspectRatio,
		VariationCount: snap.VariationCount,
		Style:          snap.Style,
		BackgroundBlur: snap.BackgroundBlur,
		HighQuality:    snap.HighQuality,
		Stage:          snap.Stage.String(),
		Pending:        snap.Stage.Pending(),
		Scenes:         []string{},
		SelectedIndex:  snap.SelectedIndex,
	}
	if sc, ok := snap.Scenario(); ok {
		out.Design = string(sc.Design)
	}
	for i := range snap.Variations {
		out.Scenes = append(out.Scenes, fmt.Sprintf("/api/sessions/%s/scenes/%d", id, i))
	}
	if snap.Asset != nil {
		out.Asset = &assetDTO{MimeType: snap.Asset.MimeType, Size: snap.Asset.Size}
	}
	if snap.Artifact != nil {
		out.Artifact = fmt.Sprintf("/api/sessions/%s/artifact", id)
	}
	if snap.Err != nil {
		out.Error = errorFrom(snap.Err)
	}
	return out
}

func errorFrom(err error) *apiError {
	kind := synthesis.KindOf(err)
	msg := err.Error()
	if text, ok := synthesis.RefusalText(err); ok {
		msg = text
	}
	return &apiError{Error: msg, Kind: kind.String()}
}
