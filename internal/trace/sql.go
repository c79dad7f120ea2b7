package trace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrUnknownDriver is returned by OpenSQL for an unsupported driver name.
var ErrUnknownDriver = errors.New("trace: unknown sql driver")

// tracePoint is the persisted form of a Point.
type tracePoint struct {
	ID         uint   `gorm:"primarykey"`
	RunID      string `gorm:"size:36;index:idx_run_seq,priority:1"`
	Seq        uint64 `gorm:"index:idx_run_seq,priority:2"`
	SimTimeMs  int64
	RecordedAt time.Time

	X, Y, Z                      float64
	VX, VY, VZ                   float64
	QX, QY, QZ, QW               float64
	FXGlobal, FYGlobal, FZGlobal float64
	Alpha, Beta                  float64
}

func (tracePoint) TableName() string { return "trace_points" }

func newTracePoint(runID string, p Point) tracePoint {
	return tracePoint{
		RunID:      runID,
		Seq:        p.Seq,
		SimTimeMs:  p.SimTime.Milliseconds(),
		RecordedAt: p.RecordedAt,
		X:          p.Position.X(),
		Y:          p.Position.Y(),
		Z:          p.Position.Z(),
		VX:         p.Velocity.X(),
		VY:         p.Velocity.Y(),
		VZ:         p.Velocity.Z(),
		QX:         p.Orientation.X(),
		QY:         p.Orientation.Y(),
		QZ:         p.Orientation.Z(),
		QW:         p.Orientation.W,
		FXGlobal:   p.ForceGlobal.X(),
		FYGlobal:   p.ForceGlobal.Y(),
		FZGlobal:   p.ForceGlobal.Z(),
		Alpha:      p.AlphaDeg,
		Beta:       p.BetaDeg,
	}
}

func (t tracePoint) point() Point {
	return Point{
		Seq:         t.Seq,
		SimTime:     time.Duration(t.SimTimeMs) * time.Millisecond,
		RecordedAt:  t.RecordedAt,
		Position:    mgl64.Vec3{t.X, t.Y, t.Z},
		Velocity:    mgl64.Vec3{t.VX, t.VY, t.VZ},
		Orientation: mgl64.Quat{W: t.QW, V: mgl64.Vec3{t.QX, t.QY, t.QZ}},
		ForceGlobal: mgl64.Vec3{t.FXGlobal, t.FYGlobal, t.FZGlobal},
		AlphaDeg:    t.Alpha,
		BetaDeg:     t.Beta,
	}
}

// SQLSink stores trajectory points in a SQL database, one run per sink.
type SQLSink struct {
	db    *gorm.DB
	runID string
}

// OpenSQL connects to driver ("sqlite" or "postgres") at dsn and migrates
// the trace table.
func OpenSQL(driver, dsn string) (*SQLSink, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        maxBatch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("trace: access sql interface: %w", err)
	}
	if driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&tracePoint{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("trace: migrate: %w", err)
	}
	return &SQLSink{db: db, runID: uuid.NewString()}, nil
}

// RunID identifies the rows written by this sink.
func (s *SQLSink) RunID() string {
	return s.runID
}

// Write inserts pts.
func (s *SQLSink) Write(ctx context.Context, pts []Point) error {
	if len(pts) == 0 {
		return nil
	}
	rows := make([]tracePoint, len(pts))
	for i, p := range pts {
		rows[i] = newTracePoint(s.runID, p)
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

// Points returns the stored points of runID ordered by sequence number.
func (s *SQLSink) Points(ctx context.Context, runID string) ([]Point, error) {
	var rows []tracePoint
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("seq").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	pts := make([]Point, len(rows))
	for i, r := range rows {
		pts[i] = r.point()
	}
	return pts, nil
}

// Close closes the database connection.
func (s *SQLSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
