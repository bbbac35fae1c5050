package cmd

import (
	pd "github.com/alphabill-org/partdist/partitiondistribution"
)

// partitionIDFlag implements pflag.Value for partition id in "zone_partition" form.
type partitionIDFlag struct {
	id *pd.PartitionID
}

func (f *partitionIDFlag) String() string {
	if f.id == nil {
		return ""
	}
	return f.id.String()
}

func (f *partitionIDFlag) Set(s string) error {
	id, err := pd.ParsePartitionID(s)
	if err != nil {
		return err
	}
	*f.id = id
	return nil
}

func (f *partitionIDFlag) Type() string {
	return "zone_partition"
}
