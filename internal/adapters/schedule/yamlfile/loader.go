// Package yamlfile reads and writes day schedules stored as YAML lists of activities.
package yamlfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hylla/daybox/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the schedule used when no weekday-specific file exists.
const DefaultFileName = "default_settings.yaml"

// daySuffix completes "<Weekday>_settings.yaml".
const daySuffix = "_settings.yaml"

// ErrInvalidSchedule reports a schedule file that cannot be turned into activities.
var ErrInvalidSchedule = errors.New("invalid schedule file")

type activityRecord struct {
	ID          string       `yaml:"id,omitempty"`
	Name        string       `yaml:"name" validate:"required"`
	StartTime   string       `yaml:"start_time" validate:"required,clocktime"`
	EndTime     string       `yaml:"end_time" validate:"required,clocktime"`
	Description *lines       `yaml:"description" validate:"required"`
	Tasks       []taskRecord `yaml:"tasks,omitempty" validate:"dive"`
}

type taskRecord struct {
	Name string `yaml:"name" validate:"required"`
	UUID string `yaml:"uuid,omitempty"`
}

// UnmarshalYAML accepts a bare task name or a {name, uuid} mapping.
func (t *taskRecord) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Name = strings.TrimSpace(node.Value)
		return nil
	}
	type plain taskRecord
	var out plain
	if err := node.Decode(&out); err != nil {
		return err
	}
	*t = taskRecord(out)
	return nil
}

// lines is a description given either as one string or as a list.
type lines []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *lines) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = lines{node.Value}
		return nil
	}
	out := []string{}
	if err := node.Decode(&out); err != nil {
		return err
	}
	*l = out
	return nil
}

// Loader resolves schedule files inside Dir.
type Loader struct {
	Dir         string
	DefaultFile string
	validate    *validator.Validate
}

// New constructs a loader; an empty defaultFile means DefaultFileName.
func New(dir, defaultFile string) *Loader {
	if strings.TrimSpace(defaultFile) == "" {
		defaultFile = DefaultFileName
	}
	validate := validator.New()
	_ = validate.RegisterValidation("clocktime", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseClockTime(fl.Field().String())
		return err == nil
	})
	return &Loader{Dir: dir, DefaultFile: defaultFile, validate: validate}
}

// DefaultPath returns the fallback schedule path.
func (l *Loader) DefaultPath() string {
	return l.resolve(l.DefaultFile)
}

// PathFor returns the weekday-specific schedule path, whether or not it exists.
func (l *Loader) PathFor(weekday time.Weekday) string {
	return filepath.Join(l.Dir, weekday.String()+daySuffix)
}

// DaySchedulePath reports the weekday-specific file when it exists.
func (l *Loader) DaySchedulePath(weekday time.Weekday) (string, bool) {
	path := l.PathFor(weekday)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

// ResolvePath picks the weekday-specific file, falling back to the default one.
func (l *Loader) ResolvePath(weekday time.Weekday) string {
	if path, ok := l.DaySchedulePath(weekday); ok {
		return path
	}
	return l.DefaultPath()
}

// resolve anchors bare file names in Dir.
func (l *Loader) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || filepath.Base(path) != path {
		return path
	}
	return filepath.Join(l.Dir, path)
}

// Load reads the schedule at path and returns it with the path actually used.
// An empty path loads the default file.
func (l *Loader) Load(path string) (domain.Schedule, string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = l.DefaultPath()
	} else {
		path = l.resolve(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Schedule{}, path, fmt.Errorf("read schedule %s: %w", path, err)
	}
	schedule, err := l.Parse(data)
	if err != nil {
		return domain.Schedule{}, path, fmt.Errorf("%s: %w", path, err)
	}
	return schedule, path, nil
}

// Parse decodes and validates a YAML schedule document.
func (l *Loader) Parse(data []byte) (domain.Schedule, error) {
	var records []activityRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return domain.Schedule{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	activities := make([]domain.Activity, 0, len(records))
	for i, record := range records {
		if err := l.validate.Struct(record); err != nil {
			return domain.Schedule{}, fmt.Errorf("%w: activity %d (%s): %s", ErrInvalidSchedule, i+1, record.Name, describeValidation(err))
		}
		activity, err := record.toDomain()
		if err != nil {
			return domain.Schedule{}, fmt.Errorf("%w: activity %d (%s): %w", ErrInvalidSchedule, i+1, record.Name, err)
		}
		activities = append(activities, activity)
	}
	return domain.NewSchedule(activities), nil
}

// Save writes schedule to path through a temp file and rename.
func (l *Loader) Save(path string, schedule domain.Schedule) error {
	path = l.resolve(strings.TrimSpace(path))
	if path == "" {
		return errors.New("schedule path is required")
	}
	data, err := Encode(schedule)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create schedule dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".schedule-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp schedule: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp schedule: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp schedule: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp schedule: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace schedule %s: %w", path, err)
	}
	return nil
}

// Encode renders schedule as YAML with two-space indentation.
func Encode(schedule domain.Schedule) ([]byte, error) {
	activities := schedule.Activities()
	records := make([]activityRecord, 0, len(activities))
	for _, activity := range activities {
		description := lines(activity.Description)
		if description == nil {
			description = lines{}
		}
		record := activityRecord{
			ID:          activity.ID,
			Name:        activity.Name,
			StartTime:   activity.Start.String(),
			EndTime:     activity.End.String(),
			Description: &description,
		}
		for _, task := range activity.Tasks {
			record.Tasks = append(record.Tasks, taskRecord(task))
		}
		records = append(records, record)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}
	return buf.Bytes(), nil
}

// toDomain builds the activity. Files without ids use the activity name, which is also
// the key older name-based history was recorded under.
func (r activityRecord) toDomain() (domain.Activity, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = strings.TrimSpace(r.Name)
	}
	in := domain.ActivityInput{
		ID:    id,
		Name:  r.Name,
		Start: r.StartTime,
		End:   r.EndTime,
	}
	if r.Description != nil {
		in.Description = []string(*r.Description)
	}
	for _, task := range r.Tasks {
		in.Tasks = append(in.Tasks, domain.Task{Name: task.Name, UUID: task.UUID})
	}
	return domain.NewActivity(in)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", yamlName(fe.StructField())))
		case "clocktime":
			parts = append(parts, fmt.Sprintf("%s %q is not HH:MM", yamlName(fe.StructField()), fe.Value()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", yamlName(fe.StructField()), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

var yamlNames = map[string]string{
	"Name":        "name",
	"StartTime":   "start_time",
	"EndTime":     "end_time",
	"Description": "description",
}

func yamlName(field string) string {
	if name, ok := yamlNames[field]; ok {
		return name
	}
	return strings.ToLower(field)
}
