package moodle

// section is one element of core_course_get_contents.
type section struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Visible *int   `json:"visible"` // Absent on some releases for section 0
	Summary string `json:"summary"`
	Section int    `json:"section"` // Ordinal
}

func (s section) isVisible() bool {
	return s.Visible == nil || *s.Visible != 0
}

// createdCourse is one element of core_course_create_courses.
type createdCourse struct {
	ID        int64  `json:"id"`
	ShortName string `json:"shortname"`
}

// course is one element of core_course_get_courses.
type course struct {
	ID        int64  `json:"id"`
	FullName  string `json:"fullname"`
	ShortName string `json:"shortname"`
	Summary   string `json:"summary"`
	Format    string `json:"format"`
	StartDate int64  `json:"startdate"`
	EndDate   int64  `json:"enddate"`
	Visible   int    `json:"visible"`
}

// siteInfo is the reply of core_webservice_get_site_info.
type siteInfo struct {
	SiteName string `json:"sitename"`
	UserName string `json:"username"`
	FullName string `json:"fullname"`
	UserID   int64  `json:"userid"`
	Release  string `json:"release"`
}

// warning is the shape Moodle uses for non-fatal per-item failures.
type warning struct {
	Item        string `json:"item"`
	ItemID      int64  `json:"itemid"`
	WarningCode string `json:"warningcode"`
	Message     string `json:"message"`
}

type updateCoursesResponse struct {
	Warnings []warning `json:"warnings"`
}
