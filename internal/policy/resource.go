package policy

import "hikeclub/internal/models"

// Resource is anything a rule can be evaluated against: a record or a Kind.
type Resource interface {
	ResourceKind() string
}

// Owned resources carry the id of the identity that owns them.
type Owned interface {
	Resource
	OwnerID() uint
}

// Kind is a class-level resource, used when no record is loaded (index, create).
type Kind string

func (k Kind) ResourceKind() string { return string(k) }

const (
	KindAll         Kind = "*"
	KindUser        Kind = models.ResourceUser
	KindHike        Kind = models.ResourceHike
	KindHikeHistory Kind = models.ResourceHikeHistory
	KindHikePath    Kind = models.ResourceHikePath
)

// Kinds lists every concrete resource kind.
var Kinds = []Kind{KindUser, KindHike, KindHikeHistory, KindHikePath}
