package domain

import "time"

// Canonical payment statuses.
const (
	PaymentPaid    = "paid"
	PaymentPending = "pending"
	PaymentOverdue = "overdue"
)

// Canonical genders.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Development assessment outcome labels, lowest to highest.
const (
	OutcomeBB  = "BB"  // belum berkembang
	OutcomeMB  = "MB"  // mulai berkembang
	OutcomeBSH = "BSH" // berkembang sesuai harapan
	OutcomeBSB = "BSB" // berkembang sangat baik
)

// OutcomeLabels is the fixed outcome vocabulary in ascending order.
var OutcomeLabels = []string{OutcomeBB, OutcomeMB, OutcomeBSH, OutcomeBSB}

// DevelopmentCategories is the fixed list of assessed development areas.
var DevelopmentCategories = []string{
	"religious_moral",
	"physical_motor",
	"cognitive",
	"language",
	"social_emotional",
	"art",
}

// Child is a pupil enrolled at the school.
type Child struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Nickname  string    `json:"nickname,omitempty"`
	Gender    string    `json:"gender"`
	BirthDate time.Time `json:"birthDate"`
	ClassName string    `json:"className"`
	ParentID  string    `json:"parentId"`
}

// DailyReport is a teacher's note on one child for one day.
type DailyReport struct {
	ID           string    `json:"id"`
	ChildID      string    `json:"childId"`
	ChildName    string    `json:"childName,omitempty"`
	Date         time.Time `json:"date"`
	Theme        string    `json:"theme"`
	SubTheme     string    `json:"subTheme,omitempty"`
	Activities   string    `json:"activities,omitempty"`
	Meal         string    `json:"meal,omitempty"`
	Nap          string    `json:"nap,omitempty"`
	Mood         string    `json:"mood,omitempty"`
	SpecialNotes string    `json:"specialNotes,omitempty"`
}

// SemesterReport holds the developmental assessment for one child and
// semester. Assessments maps category -> assessed field -> outcome label.
type SemesterReport struct {
	ID           string                       `json:"id"`
	ChildID      string                       `json:"childId"`
	ChildName    string                       `json:"childName,omitempty"`
	Semester     string                       `json:"semester"`
	AcademicYear string                       `json:"academicYear"`
	Assessments  map[string]map[string]string `json:"assessments"`
	TeacherNotes string                       `json:"teacherNotes,omitempty"`
	CreatedAt    time.Time                    `json:"createdAt"`
}

// Payment is a billed item for a child.
type Payment struct {
	ID          string     `json:"id"`
	ChildID     string     `json:"childId"`
	ChildName   string     `json:"childName,omitempty"`
	Description string     `json:"description"`
	Amount      int64      `json:"amount"`
	DueDate     time.Time  `json:"dueDate"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	Status      string     `json:"status"`
}

// User is an account in the host application.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

// Schedule is a weekly recurring class activity. TeacherID and
// CurriculumID are empty when the reference could not be resolved.
type Schedule struct {
	ID             string    `json:"id"`
	Day            string    `json:"day"`
	StartTime      string    `json:"startTime"`
	EndTime        string    `json:"endTime"`
	Activity       string    `json:"activity"`
	ClassName      string    `json:"className,omitempty"`
	TeacherID      string    `json:"teacherId,omitempty"`
	TeacherName    string    `json:"teacherName,omitempty"`
	CurriculumID   string    `json:"curriculumId,omitempty"`
	CurriculumName string    `json:"curriculumName,omitempty"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Curriculum is a named learning programme.
type Curriculum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AgeGroup    string `json:"ageGroup,omitempty"`
}
