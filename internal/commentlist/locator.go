package commentlist

import (
	"context"
	"errors"
	"fmt"

	"FlatComments/internal/models"
)

// ErrUnresolved means the locator does not name a known content object.
var ErrUnresolved = errors.New("content object cannot be resolved")

// Object is anything that can name its own content type and primary key.
type Object interface {
	ContentTypeTag() string
	ObjectPK() string
}

// Resolver maps content-type tags and ids onto known content types.
// Missing content types are reported with models.ErrNotFound.
type Resolver interface {
	ContentTypeByTag(ctx context.Context, tag string) (*models.ContentType, error)
	ContentTypeByID(ctx context.Context, id int64) (*models.ContentType, error)
}

// Target is the canonical identity a comment list is keyed on.
type Target struct {
	ContentTypeID int64
	ObjectPK      string
}

// Locator is either ByObject or ByTypeAndKey / ByTypeIDAndKey.
type Locator interface {
	resolve(ctx context.Context, r Resolver) (Target, error)
}

type byObject struct {
	obj Object
}

func ByObject(obj Object) Locator {
	return byObject{obj: obj}
}

func (l byObject) resolve(ctx context.Context, r Resolver) (Target, error) {
	if l.obj == nil {
		return Target{}, fmt.Errorf("%w: nil object", ErrUnresolved)
	}
	return byTypeAndKey{tag: l.obj.ContentTypeTag(), pk: l.obj.ObjectPK()}.resolve(ctx, r)
}

type byTypeAndKey struct {
	tag string
	id  int64
	pk  string
}

func ByTypeAndKey(tag, pk string) Locator {
	return byTypeAndKey{tag: tag, pk: pk}
}

func ByTypeIDAndKey(id int64, pk string) Locator {
	return byTypeAndKey{id: id, pk: pk}
}

func (l byTypeAndKey) resolve(ctx context.Context, r Resolver) (Target, error) {
	if l.pk == "" {
		return Target{}, fmt.Errorf("%w: empty object pk", ErrUnresolved)
	}

	var (
		ct  *models.ContentType
		err error
	)
	switch {
	case l.tag != "":
		ct, err = r.ContentTypeByTag(ctx, l.tag)
	case l.id > 0:
		ct, err = r.ContentTypeByID(ctx, l.id)
	default:
		return Target{}, fmt.Errorf("%w: empty content type", ErrUnresolved)
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return Target{}, fmt.Errorf("%w: %v", ErrUnresolved, err)
		}
		return Target{}, fmt.Errorf("failed to resolve content type: %w", err)
	}
	return Target{ContentTypeID: ct.ID, ObjectPK: l.pk}, nil
}

// Resolve turns a locator into its canonical target.
func Resolve(ctx context.Context, r Resolver, loc Locator) (Target, error) {
	if loc == nil {
		return Target{}, fmt.Errorf("%w: nil locator", ErrUnresolved)
	}
	return loc.resolve(ctx, r)
}
