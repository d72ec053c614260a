package properties

import (
	"os"
	"strconv"
)

// OutputPath is the default collection root packages are created under.
func OutputPath() string {
	return os.Getenv("EO3PACK_OUTPUT_PATH")
}

// CollectionURIPrefix overrides the explorer base URI recorded in
// product hrefs, when set.
func CollectionURIPrefix() string {
	return os.Getenv("EO3PACK_COLLECTION_URI")
}

// ChecksumWorkers sizes the checksumming pool. Zero means the default.
func ChecksumWorkers() int {
	n, err := strconv.Atoi(os.Getenv("EO3PACK_CHECKSUM_WORKERS"))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}
func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}
