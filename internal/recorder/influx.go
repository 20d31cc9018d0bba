package recorder

import (
	"fmt"
	"strconv"

	"IPOTracker/internal/model"

	client "github.com/influxdata/influxdb/client/v2"
	"go.uber.org/zap"
)

const (
	featureMeasurement = "ipo_feature"
	cycleMeasurement   = "ipo_cycle"
)

// InfluxConfig addresses an InfluxDB 1.x server.
type InfluxConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// InfluxRecorder exports each cycle as points for dashboards.
type InfluxRecorder struct {
	client   client.Client
	database string
	logger   *zap.Logger
}

func NewInfluxRecorder(cfg InfluxConfig, logger *zap.Logger) (*InfluxRecorder, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("influx client: %w", err)
	}
	logger.Info("influx recorder configured", zap.String("addr", cfg.Addr), zap.String("db", cfg.Database))
	return &InfluxRecorder{client: c, database: cfg.Database, logger: logger}, nil
}

// RecordCycle writes one ipo_cycle point and one ipo_feature point per defined feature.
func (r *InfluxRecorder) RecordCycle(snap *CycleSnapshot) error {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  r.database,
		Precision: "s",
	})
	if err != nil {
		return fmt.Errorf("batch points: %w", err)
	}

	cp, err := client.NewPoint(cycleMeasurement,
		map[string]string{"cycle": snap.ID},
		map[string]interface{}{
			"listings":    snap.Listings,
			"scored":      snap.Table.Len(),
			"skipped":     snap.Skipped,
			"duration_ms": snap.Duration.Milliseconds(),
		},
		snap.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("cycle point: %w", err)
	}
	bp.AddPoint(cp)

	keys := model.FeatureKeys()
	for _, rec := range snap.Table.Records {
		for i, k := range keys {
			v := rec.Features[i]
			if !v.Defined() {
				continue
			}
			p, err := client.NewPoint(featureMeasurement,
				map[string]string{
					"symbol":      rec.Listing.Symbol,
					"granularity": k.Granularity.Slug(),
					"lag":         strconv.Itoa(k.Lag),
				},
				map[string]interface{}{"value": v.Val},
				snap.StartedAt,
			)
			if err != nil {
				return fmt.Errorf("feature point %s %s: %w", rec.Listing.Symbol, k.ID(), err)
			}
			bp.AddPoint(p)
		}
	}

	if err := r.client.Write(bp); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	r.logger.Debug("cycle exported", zap.String("cycle", snap.ID), zap.Int("points", len(bp.Points())))
	return nil
}

func (r *InfluxRecorder) Close() error {
	return r.client.Close()
}
