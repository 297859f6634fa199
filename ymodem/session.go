package ymodem

// session holds the state owned by a Sender for the lifetime of one Send
// call: negotiated packet size, crc/checksum choice, and the running
// counters spec'd as the Session State.
type session struct {
	packetSize   int
	crcMode      bool
	seq          uint8
	errorCount   int
	successCount int
	totalPackets int
}
