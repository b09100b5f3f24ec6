package domain

const (
	// PieceInputs is 64 squares x 12 colored piece kinds.
	PieceInputs = 768
	// SideToMoveIndex is set iff white is to move.
	SideToMoveIndex = PieceInputs
	FeatureSize     = PieceInputs + 1
)

// Sample is a labeled example. Input holds the indices of the non-zero
// entries of the feature vector, every one of which equals 1.
type Sample struct {
	Input  []int16
	Target float32
}
