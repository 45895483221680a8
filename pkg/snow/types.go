package snow

import (
	"fmt"
)

// Table is implemented by typed rows to name the table they live in.
type Table interface {
	TableName() string
}

// TableRecord holds the system fields present on every row.
type TableRecord struct {
	SysID        string `json:"sys_id,omitempty"         yaml:"sys_id,omitempty"`
	SysCreatedOn string `json:"sys_created_on,omitempty" yaml:"sys_created_on,omitempty"`
	SysCreatedBy string `json:"sys_created_by,omitempty" yaml:"sys_created_by,omitempty"`
	SysUpdatedOn string `json:"sys_updated_on,omitempty" yaml:"sys_updated_on,omitempty"`
	SysUpdatedBy string `json:"sys_updated_by,omitempty" yaml:"sys_updated_by,omitempty"`
	SysModCount  string `json:"sys_mod_count,omitempty"  yaml:"sys_mod_count,omitempty"`
}

// GetSysID returns the row's sys_id.
func (r TableRecord) GetSysID() string {
	return r.SysID
}

// Record is an untyped row.
type Record map[string]interface{}

// SysID returns the row's sys_id or "".
func (r Record) SysID() string {
	return r.String(FieldSysID)
}

// String returns the field as a string. Reference fields return their value.
func (r Record) String(key string) string {
	switch value := r[key].(type) {
	case nil:
		return ""
	case string:
		return value
	case map[string]interface{}:
		if inner, ok := value["value"].(string); ok {
			return inner
		}

		return ""
	default:
		return fmt.Sprint(value)
	}
}

// Link returns the reference link for a reference field.
func (r Record) Link(key string) (Link, bool) {
	value, ok := r[key].(map[string]interface{})
	if !ok {
		return Link{}, false
	}

	link, _ := value["link"].(string)
	val, _ := value["value"].(string)

	if link == "" {
		return Link{}, false
	}

	return Link{Link: link, Value: val}, true
}

// Link is a reference field as returned by the service.
type Link struct {
	Link  string `json:"link"  yaml:"link"`
	Value string `json:"value" yaml:"value"`
}

// Attachment describes a file attached to a row.
type Attachment struct {
	SysID          string `json:"sys_id"                    yaml:"sys_id"`
	FileName       string `json:"file_name"                 yaml:"file_name"`
	ContentType    string `json:"content_type"              yaml:"content_type"`
	SizeBytes      string `json:"size_bytes"                yaml:"size_bytes"`
	SizeCompressed string `json:"size_compressed,omitempty" yaml:"size_compressed,omitempty"`
	Compressed     string `json:"compressed,omitempty"      yaml:"compressed,omitempty"`
	DownloadLink   string `json:"download_link"             yaml:"download_link"`
	TableName      string `json:"table_name"                yaml:"table_name"`
	TableSysID     string `json:"table_sys_id"              yaml:"table_sys_id"`
	Hash           string `json:"hash,omitempty"            yaml:"hash,omitempty"`
	State          string `json:"state,omitempty"           yaml:"state,omitempty"`
	SysCreatedOn   string `json:"sys_created_on,omitempty"  yaml:"sys_created_on,omitempty"`
	SysCreatedBy   string `json:"sys_created_by,omitempty"  yaml:"sys_created_by,omitempty"`
	SysUpdatedOn   string `json:"sys_updated_on,omitempty"  yaml:"sys_updated_on,omitempty"`
	SysUpdatedBy   string `json:"sys_updated_by,omitempty"  yaml:"sys_updated_by,omitempty"`
}

// MetaDataResult is the CMDB metadata for a class.
type MetaDataResult struct {
	Name                string                 `json:"name"                 yaml:"name"`
	Label               string                 `json:"label"                yaml:"label"`
	Parent              string                 `json:"parent"               yaml:"parent"`
	Icon                string                 `json:"icon,omitempty"       yaml:"icon,omitempty"`
	IconURL             string                 `json:"icon_url,omitempty"   yaml:"icon_url,omitempty"`
	IsExtendable        bool                   `json:"is_extendable"        yaml:"is_extendable"`
	Children            []string               `json:"children"             yaml:"children"`
	Attributes          []MetaDataAttribute    `json:"attributes"           yaml:"attributes"`
	RelationshipRules   []RelationshipRule     `json:"relationship_rules"   yaml:"relationship_rules"`
	IdentificationRules map[string]interface{} `json:"identification_rules" yaml:"identification_rules"`
}

// MetaDataAttribute describes one column of a CMDB class.
type MetaDataAttribute struct {
	Name         string `json:"element"                   yaml:"name"`
	Label        string `json:"label"                     yaml:"label"`
	Type         string `json:"type"                      yaml:"type"`
	InternalType string `json:"internal_type"             yaml:"internal_type"`
	MaxLength    string `json:"max_length"                yaml:"max_length"`
	ReferenceTo  string `json:"reference,omitempty"       yaml:"reference,omitempty"`
	DefaultValue string `json:"default_value,omitempty"   yaml:"default_value,omitempty"`
	IsMandatory  string `json:"is_mandatory"              yaml:"is_mandatory"`
	IsReadOnly   string `json:"is_read_only"              yaml:"is_read_only"`
	IsDisplay    string `json:"is_display"                yaml:"is_display"`
	IsPrimaryKey string `json:"is_primary_key,omitempty"  yaml:"is_primary_key,omitempty"`
	IsInherited  string `json:"is_inherited"              yaml:"is_inherited"`
}

// RelationshipRule is a permitted relationship for a CMDB class.
type RelationshipRule struct {
	Parent   string `json:"parent"   yaml:"parent"`
	Relation string `json:"relation" yaml:"relation"`
	Child    string `json:"child"    yaml:"child"`
}
