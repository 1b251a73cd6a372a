// Package domain holds the record and table types shared by every stage of
// the maintenance-forecast feature pipeline.
package domain

import (
	"math"
	"time"
)

// Table identifies one of the six upstream record sets.
type Table string

const (
	TableSensor           Table = "sensor"
	TableMachines         Table = "machines"
	TableMaintenanceLogs  Table = "maintenance_logs"
	TableMaintenanceTasks Table = "maintenance_tasks"
	TableEnvironment      Table = "environment"
	TableUsage            Table = "usage"
)

func AllTables() []Table {
	return []Table{
		TableSensor,
		TableMachines,
		TableMaintenanceLogs,
		TableMaintenanceTasks,
		TableEnvironment,
		TableUsage,
	}
}

// Source column names.
const (
	ColMachineID           = "machine_id"
	ColTimestamp           = "timestamp"
	ColErrorCode           = "error_code"
	ColModelID             = "machine_model_id"
	ColTypeID              = "machine_type_id"
	ColInstallationDate    = "installation_date"
	ColTaskID              = "maintenance_task_id"
	ColEventDate           = "date"
	ColExternalTemperature = "temperature_external"
	ColHumidity            = "humidity"
	ColWorkingHours        = "working_hours"
)

// Derived column names.
const (
	ColDaysSinceMaintenance = "days_since_maintenance"
	ColMaintenanceUrgency   = "maintenance_urgency"
	ColHumidityExternal     = "humidity_external"
	ColHour                 = "hour"
	ColDayOfWeek            = "day_of_week"
	ColMonth                = "month"
	ColLabel                = "needs_maintenance"
)

// Null marks a missing feature value. Always test with IsNull.
var Null = math.NaN()

func IsNull(v float64) bool { return math.IsNaN(v) }

type MachineRecord struct {
	MachineID        string
	ModelID          float64
	TypeID           float64
	InstallationDate *time.Time
}

type MaintenanceEvent struct {
	TaskID    string
	MachineID string
	Date      time.Time
	Imputed   bool
}

type EnvironmentalReading struct {
	MachineID           string
	Timestamp           time.Time
	ExternalTemperature float64
	Humidity            float64
}

type UsageRecord struct {
	MachineID    string
	Timestamp    time.Time
	WorkingHours float64
}

// SensorReading is one parsed sensor row. Metrics is aligned with the
// sensor metric columns chosen by the join engine.
type SensorReading struct {
	MachineID string
	Timestamp time.Time
	Metrics   []float64
}
