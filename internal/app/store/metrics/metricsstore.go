// Package metricsstore computes occupancy totals from the groups collection
// and exposes them as Prometheus gauges.
package metricsstore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Counts is the set of occupancy totals.
type Counts struct {
	Groups      int64 `bson:"groups"`
	FullGroups  int64 `bson:"full_groups"`
	EmptyGroups int64 `bson:"empty_groups"`
	Members     int64 `bson:"members"`
	Seats       int64 `bson:"seats"`
}

// FetchCounts returns occupancy totals over every group in one aggregation.
func FetchCounts(ctx context.Context, db *mongo.Database) (Counts, error) {
	size := bson.M{"$size": bson.M{"$ifNull": bson.A{"$members", bson.A{}}}}
	pipeline := mongo.Pipeline{
		{{Key: "$project", Value: bson.M{"n": size, "capacity": 1}}},
		{{Key: "$group", Value: bson.M{
			"_id":    nil,
			"groups": bson.M{"$sum": 1},
			"full_groups": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$gte": bson.A{"$n", "$capacity"}}, 1, 0},
			}},
			"empty_groups": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$n", 0}}, 1, 0},
			}},
			"members": bson.M{"$sum": "$n"},
			"seats":   bson.M{"$sum": "$capacity"},
		}}},
	}

	cur, err := db.Collection("groups").Aggregate(ctx, pipeline)
	if err != nil {
		return Counts{}, err
	}
	defer cur.Close(ctx)

	var out Counts
	if cur.Next(ctx) {
		if err := cur.Decode(&out); err != nil {
			return Counts{}, err
		}
	}
	return out, cur.Err()
}

var (
	groupsDesc = prometheus.NewDesc("studygroups_groups",
		"Number of study groups by occupancy state", []string{"state"}, nil)
	membersDesc = prometheus.NewDesc("studygroups_members",
		"Seats taken across all study groups", nil, nil)
	seatsDesc = prometheus.NewDesc("studygroups_seats",
		"Total seats across all study groups", nil, nil)
)

// Collector reports Counts on every scrape.
type Collector struct {
	db      *mongo.Database
	timeout time.Duration
	log     *zap.Logger
}

func NewCollector(db *mongo.Database, timeout time.Duration, logger *zap.Logger) *Collector {
	return &Collector{db: db, timeout: timeout, log: logger}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- groupsDesc
	ch <- membersDesc
	ch <- seatsDesc
}

// Collect skips the scrape's gauges when Mongo cannot answer.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	n, err := FetchCounts(ctx, c.db)
	if err != nil {
		c.log.Warn("occupancy metrics unavailable", zap.Error(err))
		return
	}

	open := n.Groups - n.FullGroups - n.EmptyGroups
	ch <- prometheus.MustNewConstMetric(groupsDesc, prometheus.GaugeValue, float64(n.FullGroups), "full")
	ch <- prometheus.MustNewConstMetric(groupsDesc, prometheus.GaugeValue, float64(n.EmptyGroups), "empty")
	ch <- prometheus.MustNewConstMetric(groupsDesc, prometheus.GaugeValue, float64(open), "open")
	ch <- prometheus.MustNewConstMetric(membersDesc, prometheus.GaugeValue, float64(n.Members))
	ch <- prometheus.MustNewConstMetric(seatsDesc, prometheus.GaugeValue, float64(n.Seats))
}
