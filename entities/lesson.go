package entities

type Lesson struct {
	ID       uint           `json:"id" gorm:"primaryKey"`
	CourseID uint           `json:"course_id" gorm:"not null;index:idx_lessons_course_id"`
	Position int            `json:"position" gorm:"not null;default:0"`
	Title    string         `json:"title" gorm:"type:varchar(255)"`
	Blocks   []ContentBlock `json:"blocks" gorm:"foreignKey:LessonID"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// ContentBlock is one piece of lesson content. Data holds the block payload as JSON.
type ContentBlock struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	LessonID uint   `json:"lesson_id" gorm:"not null;index:idx_content_blocks_lesson_id"`
	Position int    `json:"position" gorm:"not null;default:0"`
	Type     string `json:"type" gorm:"type:varchar(32);not null"`
	Data     string `json:"data" gorm:"type:text"`
}

func (ContentBlock) TableName() string {
	return "content_blocks"
}
