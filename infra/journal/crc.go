package journal

import "hash/crc32"

// checksum computes a standard IEEE CRC-32 over the record body.
func checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

func checksumValid(data []byte, sum uint32) bool {
	return crc32.ChecksumIEEE(data) == sum
}
