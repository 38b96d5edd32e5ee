package guest

// DefaultImageName is the guest binary built for this architecture.
const DefaultImageName = "guest-aarch64.bin"
