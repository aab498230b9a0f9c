package errs

const (
	ErrBadRequest          = "index-coordinator.bad_request"
	ErrProjectNotFound     = "index-coordinator.project_not_found"
	ErrProjectExists       = "index-coordinator.project_exists"
	ErrProjectBusy         = "index-coordinator.project_busy"
	ErrInternalServerError = "index-coordinator.internal_server_error"
)
