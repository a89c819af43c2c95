package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&Session{},
	&ObjectEvent{},
	&ObjectState{},
	&SceneState{},
	&ReceiverPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// ReceiverPerformance is a periodic snapshot of the host loop and registry.
type ReceiverPerformance struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"time" gorm:"index:idx_perf_time"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_perf_session_id"`
	Session      Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Live         int       `json:"live"`
	Visible      int       `json:"visible"`
	InboxLen     int       `json:"inboxLen"`
	InboxDropped uint64    `json:"inboxDropped"`
	Muted        bool      `json:"muted"`
}

func (*ReceiverPerformance) TableName() string {
	return "receiver_performances"
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Session is one recording run of the receiver
type Session struct {
	gorm.Model
	UUID            string         `json:"uuid" gorm:"size:36;uniqueIndex:idx_session_uuid"`
	StartTime       time.Time      `json:"startTime" gorm:"index:idx_session_start"`
	EndTime         sql.NullTime   `json:"endTime" gorm:"default:NULL"`
	ProtocolVersion string         `json:"protocolVersion" gorm:"size:8"`
	Port            int            `json:"port"`
	Policy          string         `json:"policy" gorm:"size:16;default:all"`
	PolicyCount     int            `json:"policyCount" gorm:"default:1"`
	Settings        datatypes.JSON `json:"settings" gorm:"default:'{}'"` // receiver settings snapshot

	ObjectEvents []ObjectEvent `json:"-"`
	SceneStates  []SceneState  `json:"-"`
}

func (*Session) TableName() string {
	return "sessions"
}

// GetByUUID loads the session with the given uuid into s.
func (s *Session) GetByUUID(db *gorm.DB, uuid string) error {
	return db.Where("uuid = ?", uuid).First(s).Error
}

// ObjectEvent records a visibility change of a tracked object as
// consumers saw it: entered or left, with the reason for leaving.
type ObjectEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_objectevent_session_id"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	ObjectID  int       `json:"objectId" gorm:"index:idx_objectevent_object_id"` // sensor-assigned id
	Frame     int       `json:"frame"`
	Type      string    `json:"type" gorm:"size:16"`   // entered, left
	Reason    string    `json:"reason" gorm:"size:16"` // message, timeout, policy, flush
	Channel   string    `json:"channel" gorm:"size:8"`
	Synthetic bool      `json:"synthetic" gorm:"default:false"`
}

func (*ObjectEvent) TableName() string {
	return "object_events"
}

// ObjectState is one sample of a visible tracked object
type ObjectState struct {
	ID           uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time       `json:"time"`
	SessionID    uint            `json:"sessionId" gorm:"index:idx_objectstate_session_id"`
	Session      Session         `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	ObjectID     int             `json:"objectId" gorm:"index:idx_objectstate_object_id"`
	OrderIndex   int             `json:"oid"`
	Frame        int             `json:"frame" gorm:"index:idx_objectstate_frame"`
	Channel      string          `json:"channel" gorm:"size:8"`
	AgeFrames    int             `json:"ageFrames"`
	AgeSeconds   float32         `json:"ageSeconds"`
	Centroid     geom.Point      `json:"centroid"` // normalized plane coordinates
	Position     geom.Point      `json:"position"` // plane meters, Z = height
	VelocityX    float32         `json:"velocityX"`
	VelocityY    float32         `json:"velocityY"`
	Orientation  float32         `json:"orientation"`
	BoundingRect Rect            `json:"boundingRect" gorm:"embedded;embeddedPrefix:rect_"`
	Depth        float32         `json:"depth"`
	HighestX     float32         `json:"highestX"`
	HighestY     float32         `json:"highestY"`
	HighestZ     float32         `json:"highestZ"`
	Distance     float32         `json:"distanceToSensor"`
	Reflectivity float32         `json:"reflectivity"`
	Contour      geom.LineString `json:"contour"`   // v1 only, normalized
	Outline      geom.Polygon    `json:"outline"`   // closed contour, plane meters
	Footprint    geom.Polygon    `json:"footprint"` // rotated bounding rect, plane meters
}

func (*ObjectState) TableName() string {
	return "object_states"
}

// Rect is a normalized bounding rectangle
type Rect struct {
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	Width    float32 `json:"width"`
	Height   float32 `json:"height"`
	Rotation float32 `json:"rotation"`
}

// SceneState is one scene update
type SceneState struct {
	ID             uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time           time.Time `json:"time" gorm:"index:idx_scenestate_time"`
	SessionID      uint      `json:"sessionId" gorm:"index:idx_scenestate_session_id"`
	Session        Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Frame          int       `json:"frame"`
	Width          float32   `json:"width"`
	Height         float32   `json:"height"`
	ObjectCount    int       `json:"objectCount"`
	PercentCovered float32   `json:"percentCovered"`
	AverageMotionX float32   `json:"averageMotionX"`
	AverageMotionY float32   `json:"averageMotionY"`
}

func (*SceneState) TableName() string {
	return "scene_states"
}
