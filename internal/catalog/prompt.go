package catalog

import (
	"fmt"
	"strings"
)

const qualitySuffix = "Ultra-detailed 4K photograph, hyper-realistic textures, tack-sharp focus, professional color grading."

const (
	backgroundBlurInstruction = "Apply a strong, convincing shallow depth-of-field effect to this image. Keep the main subject and the inserted design tack-sharp, and blur the foreground and background progressively, like a fast prime lens at a wide aperture. Do not change the composition, the colors, or the design itself."
	qualityInstruction        = "Enhance this photograph to professional quality: improve sharpness and micro-contrast, clean up noise and compression artifacts, and balance the exposure and white balance. Do not add, remove, or move anything in the scene."
)

// ResolveBasePrompt builds the scene prompt for a scenario. It panics on an
// unknown scenario or aspect ratio; callers validate user input first.
func ResolveBasePrompt(scenarioID, aspectRatio string, quality bool) string {
	sc, ok := LookupScenario(scenarioID)
	if !ok {
		panic(fmt.Sprintf("catalog: unknown scenario %q", scenarioID))
	}
	ar, ok := NormalizeAspectRatio(aspectRatio)
	if !ok {
		panic(fmt.Sprintf("catalog: unsupported aspect ratio %q", aspectRatio))
	}

	var b strings.Builder
	b.Grow(len(aspectHints[ar]) + len(sc.BasePrompt) + len(qualitySuffix) + 2)
	b.WriteString(aspectHints[ar])
	b.WriteString(" ")
	b.WriteString(sc.BasePrompt)
	if quality {
		b.WriteString(" ")
		b.WriteString(qualitySuffix)
	}
	return b.String()
}

// ResolveEditPrompt returns the compositing instruction for a design type.
// DesignNone has no instruction.
func ResolveEditPrompt(d DesignType) (string, bool) {
	switch d {
	case DesignFrame:
		return "Find the vibrant magenta area (#FF00FF) inside the frame and replace it perfectly with the provided user design. The design should inherit the scene's lighting, perspective, and any subtle shadows or reflections. Integrate it seamlessly for a photorealistic result.", true
	case DesignChandelier:
		return "Replace the glowing magenta placeholder light fixture with the user-provided chandelier design. The new chandelier must hang naturally from the ceiling, become the primary light source for the top of the scene, glow realistically, and cast accurate light and shadows onto the room and the people below.", true
	case DesignProduct:
		return "Find the magenta cube placeholder on the shelf and replace it entirely with the provided user product image. The product should sit realistically on the shelf, adopt the scene's lighting, and cast a soft, accurate shadow.", true
	case DesignScreen:
		return "Find the magenta area (#FF00FF) on the monitor screen and replace it perfectly with the provided user UI design. The design should look like it is displayed on a backlit screen with a slight emissive glow. Preserve natural screen reflections from the scene.", true
	case DesignApparel:
		return "Find the magenta rectangular placeholder (#FF00FF) on the t-shirt and replace it with the provided user design. The design must warp and conform to the fabric, including wrinkles, folds, and shadows, with the fabric texture visible through the print.", true
	case DesignBillboard:
		return "Find the large, glowing magenta billboard (#FF00FF) and replace the magenta area entirely with the provided user design. It must look like a bright, emissive LED screen casting subtle colored light onto nearby surfaces and the wet street below, with perfect perspective.", true
	case DesignPoster:
		return "Find the magenta poster area (#FF00FF) on the wall and replace it with the provided user design printed on matte paper. Keep the clips, the slight paper curl, and the wall's lighting and shadows so the print looks physically hung in the room.", true
	case DesignMug:
		return "Locate the magenta rectangular placeholder (#FF00FF) on the white coffee mug and apply the user's design onto it. The design must curve with the mug's cylindrical shape, adopt the scene's highlights and shadows, and let the ceramic texture subtly show through.", true
	case DesignLabel:
		return "Find the magenta placeholder area (#FF00FF) on the cosmetic jar and replace it with the user's label design. The label must wrap around the jar's curved surface and inherit the glossy reflections and lighting, like a real printed label on a premium product.", true
	case DesignNone:
		return "", false
	default:
		panic(fmt.Sprintf("catalog: unknown design type %q", d))
	}
}

// ResolveStylePrompt returns the post-processing instruction for an artistic
// style or one of the enhancement ids. StyleNone has no instruction.
func ResolveStylePrompt(styleID string) (string, bool) {
	switch styleID {
	case StyleNone:
		return "", false
	case StyleBackgroundBlur:
		return backgroundBlurInstruction, true
	case StyleQualityEnhance:
		return qualityInstruction, true
	case "cinematic":
		return stylePrompt("a cinematic film still: teal-and-orange color grading, deep contrast, anamorphic highlights and a subtle film grain"), true
	case "vintage_film":
		return stylePrompt("a vintage 35mm film photograph: warm faded tones, lifted blacks, soft grain and a gentle vignette"), true
	case "watercolor":
		return stylePrompt("a watercolor painting: soft translucent washes, visible paper texture and loose brush edges"), true
	case "noir":
		return stylePrompt("a film noir photograph: high-contrast black and white, hard shadows and a moody atmosphere"), true
	case "pastel_dream":
		return stylePrompt("a dreamy pastel photograph: airy pastel palette, soft glow and low contrast"), true
	case "pop_art":
		return stylePrompt("a pop art print: bold flat colors, thick outlines and halftone dot accents"), true
	default:
		panic(fmt.Sprintf("catalog: unknown style %q", styleID))
	}
}

func stylePrompt(look string) string {
	return "Transform this entire image into " + look + ". Keep the composition, the people, and the inserted design recognizable and in the same place."
}
