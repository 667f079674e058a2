package session

// Status and connectivity texts shown to the user.
const (
	StatusMissingToken    = "Missing token. Run /voice in-game to get a link."
	StatusRequestingMic   = "Requesting microphone permission..."
	StatusMicDenied       = "Microphone permission denied."
	StatusConnectFailed   = "Failed to connect to voice server."
	StatusJoiningVoice    = "Connected. Joining voice..."
	StatusWaitingForPeers = "Joined. Waiting for peers..."
	StatusNegotiating     = "Connected. Negotiating audio..."
	StatusPeerLeft        = "Peer left."
	StatusMicLive         = "Mic live."
	StatusMicMuted        = "Mic muted."
	StatusDisconnected    = "Disconnected."
	StatusRemoteError     = "Voice chat error."

	ConnectionOnline  = "Online"
	ConnectionOffline = "Offline"
	ConnectionError   = "Error"

	MicGranted = "Granted"
	MicDenied  = "Denied"
)
