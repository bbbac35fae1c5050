/*
Package versioned implements envelope for persisted binary structures.

Every encoded value starts with a four byte header: the format version of
the payload followed by the magic signature EF BE 43. Readers dispatch on
the version byte so that bytes written by an older build stay readable by
all newer builds:

	data, err := versioned.ToBytes(value, serializer)
	...
	value, err := versioned.FromBytes(data, serializer)

Multi-byte integers are little-endian. Lengths and counts are unsigned
LEB128 varints of n+1 (zero is reserved for "absent").
*/
package versioned
