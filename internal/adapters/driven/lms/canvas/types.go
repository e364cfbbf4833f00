package canvas

import "time"

// courseParams is the body of POST /api/v1/accounts/:account_id/courses.
type courseParams struct {
	Course newCourse `json:"course"`
}

type newCourse struct {
	Name              string     `json:"name"`
	CourseCode        string     `json:"course_code,omitempty"`
	PublicDescription string     `json:"public_description,omitempty"`
	StartAt           *time.Time `json:"start_at,omitempty"`
	EndAt             *time.Time `json:"end_at,omitempty"`
}

// moduleParams is the body of POST /api/v1/courses/:course_id/modules.
type moduleParams struct {
	Module newModule `json:"module"`
}

type newModule struct {
	Name     string `json:"name"`
	Position int    `json:"position,omitempty"`
}

// course is a Canvas course object.
type course struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	CourseCode        string     `json:"course_code"`
	PublicDescription string     `json:"public_description"`
	WorkflowState     string     `json:"workflow_state"`
	StartAt           *time.Time `json:"start_at"`
	EndAt             *time.Time `json:"end_at"`
}

// module is a Canvas module object.
type module struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Position  int    `json:"position"`
	Published bool   `json:"published"`
}

// profile is the reply of GET /api/v1/users/self/profile.
type profile struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ShortName    string `json:"short_name"`
	LoginID      string `json:"login_id"`
	PrimaryEmail string `json:"primary_email"`
}
