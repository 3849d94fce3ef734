// Package intent builds intent records for API operations: what an operation
// does (classification), how risky it is to exercise, which kinds of tests
// apply, and the per-field intent metadata the resolution engine honors as
// explicit overrides.
package intent

import (
	"strings"

	"github.com/example/erp/tools/testgen/internal/openapi"
)

// Classification describes what an operation does.
type Classification string

const (
	ClassRead   Classification = "read"
	ClassSearch Classification = "search"
	ClassCreate Classification = "create"
	ClassUpdate Classification = "update"
	ClassDelete Classification = "delete"
	ClassOther  Classification = "other"
)

// RiskLevel grades the impact of exercising an operation.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// TestType is a kind of test that applies to an operation.
type TestType string

const (
	TestContract   TestType = "contract"
	TestFunctional TestType = "functional"
	TestSecurity   TestType = "security"
	TestPagination TestType = "pagination"
	TestSorting    TestType = "sorting"
	TestFiltering  TestType = "filtering"
)

// Behavior lists optional operation capabilities.
type Behavior struct {
	Pagination bool `json:"pagination" yaml:"pagination"`
	Sorting    bool `json:"sorting" yaml:"sorting"`
	Filtering  bool `json:"filtering" yaml:"filtering"`
}

// RoleAccess describes who may call an operation.
type RoleAccess struct {
	RequiresAuth bool `json:"requiresAuth" yaml:"requiresAuth"`

	// Roles maps role names to whether the role is expected to be allowed.
	Roles map[string]bool `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// Record is the intent record of one operation.
type Record struct {
	Endpoint       string         `json:"endpoint" yaml:"endpoint"`
	HTTPMethod     string         `json:"httpMethod" yaml:"httpMethod"`
	Classification Classification `json:"classification" yaml:"classification"`
	RiskLevel      RiskLevel      `json:"riskLevel" yaml:"riskLevel"`
	TestTypes      []TestType     `json:"testTypes" yaml:"testTypes"`
	RoleAccess     RoleAccess     `json:"roleAccess" yaml:"roleAccess"`
	Behavior       Behavior       `json:"behavior" yaml:"behavior"`

	// Metadata holds per-field values that override generated data.
	Metadata map[string]any `json:"intentMetadata,omitempty" yaml:"intentMetadata,omitempty"`
}

// Classify classifies an operation by method and path.
func Classify(method, path string) Classification {
	switch strings.ToUpper(method) {
	case "GET":
		if strings.Contains(path, "search") || strings.Contains(path, "filter") {
			return ClassSearch
		}
		return ClassRead
	case "POST":
		return ClassCreate
	case "PUT", "PATCH":
		return ClassUpdate
	case "DELETE":
		return ClassDelete
	default:
		return ClassOther
	}
}

// Risk grades an operation by method, then classification.
func Risk(method string, class Classification) RiskLevel {
	switch strings.ToUpper(method) {
	case "DELETE":
		return RiskCritical
	case "POST", "PUT", "PATCH":
		return RiskHigh
	}
	if class == ClassSearch {
		return RiskMedium
	}
	return RiskLow
}

// TestTypes returns the test kinds that apply. Contract tests always apply.
func TestTypes(class Classification, requiresAuth bool, b Behavior) []TestType {
	types := []TestType{TestContract}
	switch class {
	case ClassCreate, ClassUpdate, ClassDelete:
		types = append(types, TestFunctional)
	}
	if requiresAuth {
		types = append(types, TestSecurity)
	}
	if b.Pagination {
		types = append(types, TestPagination)
	}
	if b.Sorting {
		types = append(types, TestSorting)
	}
	if b.Filtering {
		types = append(types, TestFiltering)
	}
	return types
}

var (
	paginationParams = map[string]bool{
		"page": true, "page_num": true, "pagenum": true, "page_no": true, "pageno": true,
		"page_size": true, "pagesize": true, "per_page": true, "perpage": true,
		"limit": true, "offset": true, "skip": true, "cursor": true,
	}
	sortingParams = map[string]bool{
		"sort": true, "sort_by": true, "sortby": true, "order": true, "order_by": true, "orderby": true,
	}
	filteringParams = map[string]bool{
		"filter": true, "q": true, "query": true, "search": true,
	}
)

// InferBehavior infers capabilities from the names of declared query parameters.
func InferBehavior(op *openapi.Operation) Behavior {
	var b Behavior
	for name := range op.ParametersIn(openapi.LocationQuery) {
		n := strings.ToLower(name)
		switch {
		case paginationParams[n]:
			b.Pagination = true
		case sortingParams[n]:
			b.Sorting = true
		case filteringParams[n], strings.HasPrefix(n, "filter["):
			b.Filtering = true
		}
	}
	return b
}

// FromOperation builds the intent record of op. metadata is carried as the
// record's intent metadata; roles, when non-nil, becomes the role access map.
func FromOperation(op *openapi.Operation, metadata map[string]any, roles map[string]bool) *Record {
	class := Classify(op.Method, op.Path)
	behavior := InferBehavior(op)

	return &Record{
		Endpoint:       op.Path,
		HTTPMethod:     op.Method,
		Classification: class,
		RiskLevel:      Risk(op.Method, class),
		TestTypes:      TestTypes(class, op.RequiresAuth, behavior),
		RoleAccess: RoleAccess{
			RequiresAuth: op.RequiresAuth,
			Roles:        roles,
		},
		Behavior: behavior,
		Metadata: metadata,
	}
}

// Build returns the intent records of every operation in doc. overrides maps
// "METHOD /path" keys to intent metadata.
func Build(doc *openapi.Document, overrides map[string]map[string]any) []*Record {
	ops := doc.Operations()
	records := make([]*Record, 0, len(ops))
	for _, op := range ops {
		records = append(records, FromOperation(op, overrides[op.Key()], nil))
	}
	return records
}
