package canisterruntime

// Clock supplies the emulated system time in nanoseconds since the Unix epoch.
type Clock func() uint64
