package guest

// DefaultImageName is the guest binary built for this architecture.
const DefaultImageName = "guest-x86_64.bin"
