package compressor

const (
	levelStep         = 2
	qualityStep       = 15
	minLossyQuality   = 30
	resetLossyQuality = 85
	scaleStep         = 0.8
)

// CalculateAdjustment returns the search state for the attempt after a
// failed one. Once quality can no longer move, the scale shrinks by
// scaleStep from its current value, so repeated stalls compound.
func CalculateAdjustment(f Format, s State) State {
	if f.Lossless() {
		if s.Quality < maxCompressionLevel {
			return State{Quality: min(s.Quality+levelStep, maxCompressionLevel), Scale: s.Scale}
		}
		return State{Quality: maxCompressionLevel, Scale: s.Scale * scaleStep}
	}

	if next := s.Quality - qualityStep; next > minLossyQuality {
		return State{Quality: next, Scale: s.Scale}
	}
	return State{Quality: resetLossyQuality, Scale: s.Scale * scaleStep}
}
