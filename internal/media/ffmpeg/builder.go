package ffmpeg

// StereoscopicFilterGraph scales the source to 1080p, splits it, mirrors the
// right eye, and stacks both eyes side by side.
const StereoscopicFilterGraph = "[0:v]scale=1920:1080,split=2[left][right];" +
	"[left]crop=1920:1080:0:0[left_crop];" +
	"[right]crop=1920:1080:0:0,hflip[right_flip];" +
	"[left_crop][right_flip]hstack=inputs=2[stereo]"

// MobileScale is the frame size of the mobile derivative.
const MobileScale = "scale=1920:960"

// StereoscopicArgs returns the arguments that render the side-by-side VR180
// derivative of input into output.
func StereoscopicArgs(input, output string) []string {
	return []string{
		"-i", input,
		"-filter_complex", StereoscopicFilterGraph,
		"-map", "[stereo]",
		"-map", "0:a?",
		"-c:v", "libx264",
		"-crf", "23",
		"-preset", "medium",
		"-c:a", "aac",
		"-b:a", "128k",
		"-y",
		output,
	}
}

// MobileArgs returns the arguments that downscale the VR180 render at input
// into the mobile derivative at output.
func MobileArgs(input, output string) []string {
	return []string{
		"-i", input,
		"-vf", MobileScale,
		"-c:v", "libx264",
		"-crf", "28",
		"-preset", "fast",
		"-c:a", "aac",
		"-b:a", "96k",
		"-y",
		output,
	}
}
