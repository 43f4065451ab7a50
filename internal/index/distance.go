package index

import "fmt"

// Distance is the metric an Index is built against.
type Distance string

const (
	// Euclidean ranks rows by squared L2 distance, ascending.
	Euclidean Distance = "EUCLIDEAN"
	// InnerProduct ranks rows by 1 - <q, x>, ascending. Rows are unit-normalized at
	// construction so the score behaves as cosine distance.
	InnerProduct Distance = "INNER_PRODUCT"
)

// ParseDistance converts a raw token into a Distance. Matching is exact and case-sensitive.
func ParseDistance(token string) (Distance, error) {
	switch Distance(token) {
	case Euclidean, InnerProduct:
		return Distance(token), nil
	default:
		return "", fmt.Errorf("%w: %q (supported: %s, %s)", ErrInvalidDistance, token, Euclidean, InnerProduct)
	}
}

// RequiresNormalization reports whether rows must be rescaled to unit L2 norm before indexing.
func (d Distance) RequiresNormalization() bool {
	return d == InnerProduct
}

func (d Distance) String() string {
	return string(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Distance) MarshalText() ([]byte, error) {
	return []byte(d), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and rejects unknown tokens.
func (d *Distance) UnmarshalText(text []byte) error {
	parsed, err := ParseDistance(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Distance) valid() bool {
	return d == Euclidean || d == InnerProduct
}
