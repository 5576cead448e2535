package scrapinghub

import (
	"net/http"
	"regexp"
)

// Endpoint selects the base URL an operation is sent to.
type Endpoint int

const (
	EndpointAPI Endpoint = iota
	EndpointStorage
)

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
)

type Param struct {
	Name        string
	Description string
	Type        ParamType
	Required    bool
	// Pattern constrains string values. Parameters substituted into a path must have one.
	Pattern *regexp.Regexp
}

var jobKeyPattern = regexp.MustCompile(`^\d+/\d+/\d+$`)

// Operation describes one remote Scrapinghub call. Path may reference parameters as
// {name}; those are substituted and not sent as query or form values.
type Operation struct {
	ID          string
	Title       string
	Description string
	Method      string
	Endpoint    Endpoint
	Path        string
	// Fixed query values added to every request.
	Query  map[string]string
	Params []Param
}

var (
	projectParam = Param{Name: "project", Type: ParamInteger, Required: true,
		Description: "Numeric Scrapy Cloud project ID."}
	jobParam = Param{Name: "job", Type: ParamString, Required: true, Pattern: jobKeyPattern,
		Description: "Job key in the form <project>/<spider>/<job>, e.g. 123/1/4."}
	countParam = Param{Name: "count", Type: ParamInteger,
		Description: "Maximum number of entries to return."}
)

var operations = []Operation{
	{
		ID:          "projects.list",
		Title:       "Projects: List",
		Description: "List the Scrapy Cloud projects available to the configured API key.",
		Method:      http.MethodGet,
		Path:        "scrapyd/listprojects.json",
	},
	{
		ID:          "projects.summary",
		Title:       "Projects: Summary",
		Description: "Summarize pending, running and finished jobs of a project.",
		Method:      http.MethodGet,
		Path:        "jobs/summary.json",
		Params: []Param{
			projectParam,
			{Name: "spiderid", Type: ParamInteger, Description: "Restrict the summary to one spider."},
		},
	},
	{
		ID:          "spiders.list",
		Title:       "Spiders: List",
		Description: "List the spiders deployed to a project.",
		Method:      http.MethodGet,
		Path:        "spiders/list.json",
		Params:      []Param{projectParam},
	},
	{
		ID:          "jobs.list",
		Title:       "Jobs: List",
		Description: "List jobs of a project, optionally filtered by spider, state and tags.",
		Method:      http.MethodGet,
		Path:        "jobs/list.json",
		Params: []Param{
			projectParam,
			{Name: "spider", Type: ParamString, Description: "Spider name."},
			{Name: "state", Type: ParamString, Description: "One of pending, running, finished, deleted."},
			{Name: "has_tag", Type: ParamArray, Description: "Only jobs having any of these tags."},
			{Name: "lacks_tag", Type: ParamArray, Description: "Only jobs lacking all of these tags."},
			countParam,
		},
	},
	{
		ID:          "jobs.get",
		Title:       "Jobs: Get",
		Description: "Get the metadata of a single job.",
		Method:      http.MethodGet,
		Path:        "jobs/list.json",
		Params:      []Param{projectParam, jobParam},
	},
	{
		ID:          "items.list",
		Title:       "Items: List",
		Description: "Read the items scraped by a job.",
		Method:      http.MethodGet,
		Endpoint:    EndpointStorage,
		Path:        "items/{job}",
		Query:       map[string]string{"format": "json"},
		Params:      []Param{jobParam, countParam},
	},
	{
		ID:          "logs.list",
		Title:       "Logs: List",
		Description: "Read the log entries of a job.",
		Method:      http.MethodGet,
		Endpoint:    EndpointStorage,
		Path:        "logs/{job}",
		Query:       map[string]string{"format": "json"},
		Params:      []Param{jobParam, countParam},
	},
	{
		ID:          "jobs.run",
		Title:       "Jobs: Run",
		Description: "Schedule a spider run.",
		Method:      http.MethodPost,
		Path:        "run.json",
		Params: []Param{
			projectParam,
			{Name: "spider", Type: ParamString, Required: true, Description: "Spider name."},
			{Name: "add_tag", Type: ParamArray, Description: "Tags to add to the job."},
			{Name: "units", Type: ParamInteger, Description: "Number of units for the job."},
			{Name: "priority", Type: ParamInteger, Description: "Job priority from 0 (lowest) to 4 (highest)."},
			{Name: "job_settings", Type: ParamString, Description: "JSON object with Scrapy settings for this run."},
		},
	},
	{
		ID:          "jobs.cancel",
		Title:       "Jobs: Cancel",
		Description: "Stop a pending or running job.",
		Method:      http.MethodPost,
		Path:        "jobs/stop.json",
		Params:      []Param{projectParam, jobParam},
	},
	{
		ID:          "jobs.update_tags",
		Title:       "Jobs: Update Tags",
		Description: "Add or remove tags of a job.",
		Method:      http.MethodPost,
		Path:        "jobs/update.json",
		Params: []Param{
			projectParam,
			jobParam,
			{Name: "add_tag", Type: ParamArray, Description: "Tags to add."},
			{Name: "remove_tag", Type: ParamArray, Description: "Tags to remove."},
		},
	},
	{
		ID:          "jobs.delete",
		Title:       "Jobs: Delete",
		Description: "Delete a job and its data.",
		Method:      http.MethodPost,
		Path:        "jobs/delete.json",
		Params:      []Param{projectParam, jobParam},
	},
}

// Operations returns the supported operations in a stable order.
func Operations() []Operation {
	result := make([]Operation, len(operations))
	copy(result, operations)
	return result
}

// OperationIDs returns the identifiers of Operations().
func OperationIDs() []string {
	ids := make([]string, 0, len(operations))
	for _, op := range operations {
		ids = append(ids, op.ID)
	}
	return ids
}

func Lookup(id string) (Operation, bool) {
	for _, op := range operations {
		if op.ID == id {
			return op, true
		}
	}
	return Operation{}, false
}
