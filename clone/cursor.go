package clone

import (
	"github.com/percona/search-clone/errors"
	"github.com/percona/search-clone/search"
)

// Cursor is the key of the last document copied. The zero Cursor is the
// start of the index: it sorts before every key.
type Cursor struct {
	key search.Value
	set bool
}

// CursorAt returns the cursor positioned at key.
func CursorAt(key search.Value) Cursor {
	return Cursor{key: key, set: true}
}

// IsStart reports whether c is the start of the index.
func (c Cursor) IsStart() bool {
	return !c.set
}

// Key returns the key c is positioned at. It is null for the start cursor.
func (c Cursor) Key() search.Value {
	return c.key
}

func (c Cursor) String() string {
	if !c.set {
		return "start"
	}

	return c.key.String()
}

// Filter returns the query filter selecting the documents after c. It is empty
// for the start cursor.
func (c Cursor) Filter(keyField string) (string, error) {
	if !c.set {
		return "", nil
	}

	lit, err := c.key.ODataLiteral()
	if err != nil {
		return "", errors.Wrapf(err, "cursor %s", c)
	}

	return keyField + " gt " + lit, nil
}

// After reports whether c is strictly after prev.
func (c Cursor) After(prev Cursor) (bool, error) {
	switch {
	case !c.set:
		return false, nil
	case !prev.set:
		return true, nil
	}

	n, err := search.Compare(c.key, prev.key)
	if err != nil {
		return false, err //nolint:wrapcheck
	}

	return n > 0, nil
}
