package encoding

import "encoding/binary"

// Endian is the endianness used for serializing and deserializing integers in segment files.
var Endian = binary.LittleEndian
