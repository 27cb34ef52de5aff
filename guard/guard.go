package guard

import "zimship/session"

// HomeRoute is where unauthenticated viewers are sent.
const HomeRoute = "/"

// Outcome is what a guarded view should do for a given session state.
type Outcome int

const (
	Placeholder Outcome = iota
	Redirect
	Render
)

func (o Outcome) String() string {
	switch o {
	case Placeholder:
		return "placeholder"
	case Redirect:
		return "redirect"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Decide is a pure function of the loading flag and user presence.
func Decide(st session.State) Outcome {
	if st.Loading {
		return Placeholder
	}
	if st.User == nil {
		return Redirect
	}
	return Render
}

// Renderer draws the three guard outcomes.
type Renderer interface {
	Placeholder()
	Redirect(to string)
	Content()
}

// Run decides and dispatches to r. An empty home means HomeRoute.
func Run(st session.State, home string, r Renderer) Outcome {
	if home == "" {
		home = HomeRoute
	}
	o := Decide(st)
	switch o {
	case Placeholder:
		r.Placeholder()
	case Redirect:
		r.Redirect(home)
	case Render:
		r.Content()
	}
	return o
}
