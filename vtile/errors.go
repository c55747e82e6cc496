package vtile

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidTile indicates a tile id outside 0 <= x,y < 2^z
	ErrInvalidTile = errors.New("invalid tile id")

	// ErrEndpointOffEdge indicates an open coastline fragment whose endpoint
	// does not lie exactly on the tile boundary
	ErrEndpointOffEdge = errors.New("coastline endpoint not on tile edge")

	// ErrUnsupportedGeometry indicates a geometry type the requested kind
	// cannot be built from
	ErrUnsupportedGeometry = errors.New("unsupported geometry")

	// ErrInvalidConfig wraps every config validation failure
	ErrInvalidConfig = errors.New("invalid config")
)
