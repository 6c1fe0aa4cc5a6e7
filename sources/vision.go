package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/eringen/autoblog/blog"
)

// DefaultVisionInstruction asks the vision model for a structured
// description of a photo session.
const DefaultVisionInstruction = `Analysiere die Bilder eines professionellen Fotoshootings und beschreibe knapp auf Deutsch:
- Art der Session (z. B. Familie, Baby, Babybauch, Hochzeit, Paar, Porträt, Business)
- Personen und Anzahl, ohne Namen zu erfinden
- Setting und Location (Studio, draußen, Jahreszeit)
- Stimmung, Licht und Farben
- Kleidung, Requisiten und besondere Details
Beginne mit einer Zeile "Session: <Art der Session>".`

// ImageAnalyzer describes images with a vision model.
type ImageAnalyzer interface {
	AnalyzeImages(ctx context.Context, images []blog.UploadedImage, instruction string) (string, error)
}

// VisionSource classifies the session from its images.
type VisionSource struct {
	Analyzer    ImageAnalyzer
	Instruction string
}

func (VisionSource) Name() Name { return ImageAnalysis }

func (s VisionSource) Fetch(ctx context.Context, q Query) (string, error) {
	if len(q.Images) == 0 {
		return "", ErrNoImages
	}
	if s.Analyzer == nil {
		return "", ErrNotConfigured
	}
	instruction := s.Instruction
	if instruction == "" {
		instruction = DefaultVisionInstruction
	}
	text, err := s.Analyzer.AnalyzeImages(ctx, q.Images, instruction)
	if err != nil {
		return "", fmt.Errorf("analyze images: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoResults
	}
	if facts := CaptureFacts(q.Images); facts != "" {
		text = strings.TrimSpace(text) + "\n\n" + facts
	}
	return text, nil
}

// CaptureFacts lists the EXIF capture date and camera of each image.
func CaptureFacts(images []blog.UploadedImage) string {
	var lines []string
	for i, img := range images {
		var parts []string
		if !img.TakenAt.IsZero() {
			parts = append(parts, "aufgenommen am "+img.TakenAt.Format("02.01.2006"))
		}
		if img.Camera != "" {
			parts = append(parts, "Kamera "+img.Camera)
		}
		if len(parts) > 0 {
			lines = append(lines, fmt.Sprintf("Bild %d: %s", i+1, strings.Join(parts, ", ")))
		}
	}
	return strings.Join(lines, "\n")
}

// SessionLabel extracts the session type from an image analysis, e.g.
// "Familienfotografie" from a "Session: Familienfotografie" line.
func SessionLabel(analysis string) string {
	for _, line := range strings.Split(analysis, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*# "))
		lower := strings.ToLower(line)
		for _, prefix := range []string{"session:", "art der session:", "sessiontyp:"} {
			if strings.HasPrefix(lower, prefix) {
				label := strings.Trim(strings.TrimSpace(line[len(prefix):]), "*.")
				if label != "" {
					return strings.TrimSpace(label)
				}
			}
		}
	}
	return ""
}
