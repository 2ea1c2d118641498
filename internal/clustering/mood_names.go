package clustering

// MoodName creates a descriptive name based on audio feature centroid values.
// Uses a 2x2 energy/valence quadrant system with acousticness modifier.
//
// Quadrants:
//   - High Energy + High Valence = "Upbeat Party"
//   - High Energy + Low Valence  = "Intense & Dark"
//   - Low Energy  + High Valence = "Chill & Happy"
//   - Low Energy  + Low Valence  = "Reflective & Melancholy"
//
// Acousticness modifier: if > 0.6, appends "(Acoustic)" to the name.
func MoodName(centroid map[string]float64) string {
	energy := centroid["energy"]
	valence := centroid["valence"]
	acousticness := centroid["acousticness"]

	var baseName string

	highEnergy := energy > 0.6
	highValence := valence > 0.5

	switch {
	case highEnergy && highValence:
		baseName = "Upbeat Party"
	case highEnergy && !highValence:
		baseName = "Intense & Dark"
	case !highEnergy && highValence:
		baseName = "Chill & Happy"
	default:
		baseName = "Reflective & Melancholy"
	}

	if acousticness > 0.6 {
		return baseName + " (Acoustic)"
	}

	return baseName
}

// MoodCategory represents a mood classification for display purposes.
type MoodCategory struct {
	Name        string  `json:"name"`
	Energy      float64 `json:"energy"`
	Valence     float64 `json:"valence"`
	Description string  `json:"description"`
}

// GetMoodCategory returns a detailed mood category for a centroid.
func GetMoodCategory(centroid map[string]float64) MoodCategory {
	energy := centroid["energy"]
	valence := centroid["valence"]

	var description string
	switch {
	case energy > 0.6 && valence > 0.5:
		description = "High-energy, positive vibes - perfect for dancing and celebrations"
	case energy > 0.6 && valence <= 0.5:
		description = "Intense, driving energy with darker emotional tones"
	case energy <= 0.6 && valence > 0.5:
		description = "Relaxed and uplifting - great for unwinding"
	default:
		description = "Contemplative and introspective - ideal for quiet moments"
	}

	return MoodCategory{
		Name:        MoodName(centroid),
		Energy:      energy,
		Valence:     valence,
		Description: description,
	}
}
