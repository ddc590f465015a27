package diskapi

const (
	TypeFile = "file"
	TypeDir  = "dir"
)

// Resource is a file or directory on the disk. Directories carry their
// children in Embedded when listed.
type Resource struct {
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Type     string        `json:"type"`
	Modified string        `json:"modified"`
	Size     int64         `json:"size,omitempty"`
	Embedded *ResourceList `json:"_embedded,omitempty"`
}

func (r *Resource) IsDir() bool {
	return r.Type == TypeDir
}

// ResourceList is one page of a directory listing.
type ResourceList struct {
	Path   string     `json:"path"`
	Items  []Resource `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Link is returned for upload handles and pending operations.
type Link struct {
	Href      string `json:"href"`
	Method    string `json:"method"`
	Templated bool   `json:"templated"`
}

// ===================================================================================================

type DirStatus int

const (
	DirCreated DirStatus = iota
	DirExists
)

func (s DirStatus) String() string {
	if s == DirExists {
		return "exists"
	}
	return "created"
}

// ===================================================================================================

type DeleteStatus int

const (
	DeleteDone DeleteStatus = iota
	DeleteNotFound
	DeletePending
)

func (s DeleteStatus) String() string {
	switch s {
	case DeleteDone:
		return "done"
	case DeleteNotFound:
		return "not found"
	case DeletePending:
		return "pending"
	}
	return "unknown"
}

// DeleteResult is the outcome of a delete request. Operation is set only when
// the status is DeletePending and points at the status endpoint to poll.
type DeleteResult struct {
	Status    DeleteStatus
	Operation *Link
}

// ===================================================================================================

type OperationStatus string

const (
	OperationPending OperationStatus = "in-progress"
	OperationSuccess OperationStatus = "success"
	OperationFailed  OperationStatus = "failed"
)

type operationResponse struct {
	Status string `json:"status"`
}
