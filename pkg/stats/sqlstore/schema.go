package sqlstore

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	summaryTable = "stats_summary"
	dailyTable   = "daily_stats"

	summaryID = 1
)

var (
	summaryColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt},
		{Name: "start_date", Type: field.TypeString, Size: 10},
		{Name: "initial_visits", Type: field.TypeInt64, Default: 0},
		{Name: "initial_api_calls", Type: field.TypeInt64, Default: 0},
		{Name: "total_visits", Type: field.TypeInt64, Default: 0},
		{Name: "total_api_calls", Type: field.TypeInt64, Default: 0},
	}

	// SummaryTable holds the single summary row.
	SummaryTable = &schema.Table{
		Name:       summaryTable,
		Columns:    summaryColumns,
		PrimaryKey: []*schema.Column{summaryColumns[0]},
	}

	dailyColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "day", Type: field.TypeString, Size: 10, Unique: true},
		{Name: "visits", Type: field.TypeInt64, Default: 0},
		{Name: "api_calls", Type: field.TypeInt64, Default: 0},
	}

	// DailyTable holds one row per day with activity.
	DailyTable = &schema.Table{
		Name:       dailyTable,
		Columns:    dailyColumns,
		PrimaryKey: []*schema.Column{dailyColumns[0]},
	}

	// Tables are migrated in this order.
	Tables = []*schema.Table{
		SummaryTable,
		DailyTable,
	}
)
