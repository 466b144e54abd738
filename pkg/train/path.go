package train

/*
Path codes record the most recent branch decisions of a sample, one bit per
level with the latest decision in bit 0 and 1 meaning right. The high bit
marks a sample whose node has left the frontier.
*/
const (
	pathBits           = 7
	pathExtinct  uint8 = 1 << pathBits
	pathLiveMask uint8 = pathExtinct - 1
)

func pathNext(path uint8, isLeft bool) uint8 {
	path <<= 1
	if !isLeft {
		path |= 1
	}
	return path & pathLiveMask
}

// pathMask selects the decisions taken over the last del levels.
func pathMask(del int) uint8 {
	return uint8(1)<<uint(del) - 1
}

func isExtinct(path uint8) bool {
	return path&pathExtinct != 0
}
