package graph

// Wire shapes for the Microsoft Graph To Do API (v1.0). Only the fields the
// bridge reads or writes are modeled.

// TaskList is a To Do task list.
type TaskList struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	WellknownListName string `json:"wellknownListName,omitempty"`
}

// WellknownDefaultList marks the account's built-in default list.
const WellknownDefaultList = "defaultList"

// DateTimeTimeZone is Graph's date-time-with-zone shape.
type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// ItemBody is Graph's rich-body shape; the bridge only writes plain text.
type ItemBody struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// Task is a To Do task as returned by Graph.
type Task struct {
	ID                   string            `json:"id"`
	Title                string            `json:"title"`
	Importance           string            `json:"importance,omitempty"`
	Status               string            `json:"status,omitempty"`
	CreatedDateTime      string            `json:"createdDateTime,omitempty"`
	LastModifiedDateTime string            `json:"lastModifiedDateTime,omitempty"`
	Body                 *ItemBody         `json:"body,omitempty"`
	DueDateTime          *DateTimeTimeZone `json:"dueDateTime,omitempty"`
	CompletedDateTime    *DateTimeTimeZone `json:"completedDateTime,omitempty"`
	Categories           []string          `json:"categories,omitempty"`
}

// Task status values.
const (
	StatusNotStarted = "notStarted"
	StatusCompleted  = "completed"
)

// TaskCreate is the request body for creating a task.
type TaskCreate struct {
	Title       string            `json:"title"`
	Importance  string            `json:"importance,omitempty"`
	Body        *ItemBody         `json:"body,omitempty"`
	DueDateTime *DateTimeTimeZone `json:"dueDateTime,omitempty"`
	Categories  []string          `json:"categories,omitempty"`
}

// listEnvelope is Graph's collection response wrapper.
type listEnvelope[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink,omitempty"`
}
