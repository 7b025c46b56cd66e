package routineapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/phrazzld/habits-api/internal/generation"
)

// wireID is an identifier the service may send as a JSON string or number.
type wireID string

func (id *wireID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("identifier must be a string or number, got %s", data)
	}
	*id = wireID(n.String())
	return nil
}

// jobResponse is the wire form of a generation job. The service also sends
// a "completed" flag; it is derived from status here and ignored.
type jobResponse struct {
	JobID               wireID     `json:"jobId"`
	TemplateID          wireID     `json:"templateId"`
	Status              string     `json:"status"`
	GeneratedTasksCount *int       `json:"generatedTasksCount"`
	ErrorMessage        string     `json:"errorMessage"`
	CreatedAt           *time.Time `json:"createdAt"`
	CompletedAt         *time.Time `json:"completedAt"`
}

// toJob converts the response without judging the status; the monitors
// normalize unrecognized values.
func (r jobResponse) toJob(templateID string) generation.GenerationJob {
	job := generation.GenerationJob{
		JobID:               string(r.JobID),
		TemplateID:          string(r.TemplateID),
		Status:              generation.JobStatus(r.Status),
		GeneratedTasksCount: r.GeneratedTasksCount,
		ErrorMessage:        r.ErrorMessage,
		CompletedAt:         r.CompletedAt,
	}
	if job.TemplateID == "" {
		job.TemplateID = templateID
	}
	if r.CreatedAt != nil {
		job.CreatedAt = *r.CreatedAt
	}
	return job
}

type templateResponse struct {
	ID       wireID `json:"id"`
	Title    string `json:"title"`
	IsActive bool   `json:"isActive"`
}

func (r templateResponse) toTemplate() generation.Template {
	return generation.Template{ID: string(r.ID), Title: r.Title, IsActive: r.IsActive}
}
