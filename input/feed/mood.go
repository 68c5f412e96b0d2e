package feed

// DefaultMood is the label for any code outside the known table.
const DefaultMood = "grateful"

var moodLabels = [...]string{
	0: "morbidlyjoyous",
	1: "robotic",
	2: "absolutelyfantastic",
	3: "human",
	4: "chipper",
	5: "overthemoon",
	6: "shocked",
	7: "lazy",
	8: "sleepy",
}

// MoodLabel translates a simulator mood code into its label.
// Every code has a label: unknown codes map to DefaultMood.
func MoodLabel(code int32) string {
	if code < 0 || int(code) >= len(moodLabels) {
		return DefaultMood
	}
	return moodLabels[code]
}

// MoodCodes returns the number of codes with a dedicated label.
func MoodCodes() int {
	return len(moodLabels)
}
