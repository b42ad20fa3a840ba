package shortener

// CollisionSource tells where a candidate key was found to be taken.
type CollisionSource string

const (
	CollisionPrecheck   CollisionSource = "precheck"
	CollisionConstraint CollisionSource = "constraint"
)

// Recorder observes allocation and click activity.
type Recorder interface {
	Collision(source CollisionSource)
	Allocation(custom bool, err error)
	Click()
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) Collision(CollisionSource) {}

func (NopRecorder) Allocation(bool, error) {}

func (NopRecorder) Click() {}
