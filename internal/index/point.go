package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/netzinformatique/kbassist/internal/core"
)

// pointCreatedAt stamps the point's storage time. The ingestion timestamp in
// metadata is provenance and stays untouched.
func pointCreatedAt() int64 {
	return time.Now().Unix()
}

// ValidatePoint checks the invariants every stored point must satisfy: a
// non-empty id, non-empty text and a vector of the collection dimension.
func ValidatePoint(p core.IndexPoint, dim int) error {
	if p.ID == "" {
		return fmt.Errorf("point with empty id rejected")
	}
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("point %q: empty text rejected", p.ID)
	}
	if len(p.Vector) != dim {
		return fmt.Errorf("point %q: vector dimension %d, collection expects %d", p.ID, len(p.Vector), dim)
	}
	return nil
}
