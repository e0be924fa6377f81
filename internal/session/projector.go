package session

// View is the display projection of a session: a human-facing stage label and
// a progress-bar fill ratio. It is derived, never authoritative.
type View struct {
	Stage         Stage
	Label         string
	ProgressRatio float64
}

// Project maps the current profile onto its display form. Pure: no side
// effects, no network, re-derivable at any time from the profile alone.
func Project(p *Profile) View {
	if p == nil {
		return View{Label: "Not started"}
	}

	view := View{Stage: p.Stage}

	switch p.Stage {
	case StageGreeting:
		view.Label = "Introduction"
	case StageSkills:
		view.Label = "Skills & experience"
	case StageComplete:
		view.Label = "Profile complete"
	default:
		// Unknown stages pass through raw; the server may grow new phases.
		view.Label = string(p.Stage)
	}

	progress := p.ProgressPercent
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	view.ProgressRatio = float64(progress) / 100

	return view
}
