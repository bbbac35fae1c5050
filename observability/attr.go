package observability

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/alphabill-org/partdist/partitiondistribution"
	"github.com/alphabill-org/partdist/versioned"
)

const (
	OpKey        attribute.Key = "op"
	StatusKey    attribute.Key = "status"
	PartitionKey attribute.Key = "partition"
)

func Partition(id partitiondistribution.PartitionID) attribute.KeyValue {
	return PartitionKey.String(id.String())
}

/*
Op returns measurement option with "op" attribute set to name of the
operation and "status" describing the outcome of it.
*/
func Op(name string, err error, extra ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(
		append(extra, OpKey.String(name), ErrStatus(err))...,
	))
}

/*
ErrStatus returns attribute named "status" with value "ok" if the param
err is nil, "corrupted" when err is caused by undecodable data and "err"
for any other error.
*/
func ErrStatus(err error) attribute.KeyValue {
	switch {
	case err == nil:
		return StatusKey.String("ok")
	case errors.Is(err, versioned.ErrCorruptedData):
		return StatusKey.String("corrupted")
	default:
		return StatusKey.String("err")
	}
}
