package controller

// ApplicantController drives the engine for the applicant side of a
// conversation. Applicants never originate rooms; a room appears when the
// recruiter reaches out, so the applicant surface is the shared core.
type ApplicantController struct {
	*Controller
}

// NewApplicant creates the applicant-facing controller.
func NewApplicant(deps Deps) *ApplicantController {
	return &ApplicantController{Controller: newController(deps)}
}
