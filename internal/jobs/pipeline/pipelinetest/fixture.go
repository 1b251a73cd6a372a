// Package pipelinetest builds small synthetic plant snapshots for job tests.
package pipelinetest

import (
	"fmt"
	"math"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/config"
	"github.com/yungbote/machine-maintenance-backend/internal/data/source"
)

var Base = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

const layout = "2006-01-02 15:04:05"

func at(h int) string { return Base.Add(time.Duration(h) * time.Hour).Format(layout) }

// Spec is the embedded pipeline defaults shrunk for tests.
func Spec(seed int64, timeSteps int) (*config.Spec, error) {
	spec, err := config.Parse([]byte(fmt.Sprintf(`
tables:
  sensor: sensor_data
  machines: machines
  maintenance_logs: maintenance_activity_logs
  maintenance_tasks: maintenance_tasks
  environment: environmental_info
  usage: machine_usage_history
required_columns:
  sensor: [machine_id, timestamp]
  machines: [machine_id, machine_model_id, machine_type_id, installation_date]
  maintenance_logs: [maintenance_task_id, date]
  maintenance_tasks: [maintenance_task_id, machine_id]
  environment: [machine_id, timestamp, temperature_external, humidity]
  usage: [machine_id, timestamp, working_hours]
sensor:
  exclude_columns: [id, error_code]
chunk_size: 17
workers: 2
seed: %d
rolling:
  metrics: [temperature, vibration, pressure, humidity]
  windows: [1h, 6h]
label:
  tolerance: 24h
  orphan_policy: impute
sequence:
  time_steps: %d
  sample_fraction: 1
  test_fraction: 0.2
  output_prefix: test-run
contract:
  version: 1
  missing_policy: mean
`, seed, timeSteps)))
	if err != nil {
		return nil, err
	}
	return spec, spec.Validate()
}

// Source builds machines "1".."n" with hourly readings over hours, a
// maintenance event every 50 hours per machine, one orphan log, one
// unparseable sensor timestamp and a short run of missing humidity.
func Source(machines, hours int) *source.Memory {
	m := source.NewMemory()
	var sensor, registry, tasks, logs, env, usage [][]any
	id := 0
	for i := 1; i <= machines; i++ {
		mid := fmt.Sprint(i)
		registry = append(registry, []any{mid, float64(100 + i%2), float64(200 + i%3), Base.Add(-time.Duration(10*i) * 24 * time.Hour).Format("2006-01-02")})
		for h := 0; h < hours; h++ {
			id++
			phase := float64(h)/5 + float64(i)
			var humidity any = 55 + 5*math.Cos(phase)
			if h >= 7 && h < 9 {
				humidity = nil
			}
			sensor = append(sensor, []any{id, mid, at(h), 60 + 10*math.Sin(phase), 1 + 0.2*math.Cos(phase), 0.5 * math.Sin(phase/2), humidity, nil})
			env = append(env, []any{mid, at(h), 20 + float64(h%24)/2, 40.0})
			usage = append(usage, []any{mid, at(h), float64(h % 24)})
		}
		for e := 30; e < hours; e += 50 {
			task := fmt.Sprintf("t%d-%d", i, e)
			tasks = append(tasks, []any{task, mid})
			logs = append(logs, []any{task, at(e + i)})
		}
	}
	logs = append(logs, []any{"orphan", at(hours / 2)})
	sensor = append(sensor, []any{id + 1, "1", "31/31/2024", 1.0, 1.0, 1.0, 1.0, nil})

	m.Put("sensor_data", []string{"id", "machine_id", "timestamp", "temperature", "vibration", "pressure", "humidity", "error_code"}, sensor...)
	m.Put("machines", []string{"machine_id", "machine_model_id", "machine_type_id", "installation_date"}, registry...)
	m.Put("maintenance_tasks", []string{"maintenance_task_id", "machine_id"}, tasks...)
	m.Put("maintenance_activity_logs", []string{"maintenance_task_id", "date"}, logs...)
	m.Put("environmental_info", []string{"machine_id", "timestamp", "temperature_external", "humidity"}, env...)
	m.Put("machine_usage_history", []string{"machine_id", "timestamp", "working_hours"}, usage...)
	return m
}
