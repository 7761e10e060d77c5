package constants

// MediaTypeByExtension maps link file extensions to Cloud API media kinds.
var MediaTypeByExtension = map[string]string{
	".jpg":  "image",
	".jpeg": "image",
	".png":  "image",
	".webp": "sticker",

	".mp4": "video",
	".3gp": "video",

	".pdf":  "document",
	".doc":  "document",
	".docx": "document",
	".xls":  "document",
	".xlsx": "document",
	".ppt":  "document",
	".pptx": "document",
	".txt":  "document",

	".ogg": "audio",
	".mp3": "audio",
	".aac": "audio",
	".amr": "audio",
	".m4a": "audio",
}

// DefaultLinkMediaType is used when a link has no recognised extension.
const DefaultLinkMediaType = "document"
