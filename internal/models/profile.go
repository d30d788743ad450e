package models

// Profile — профиль текущего пользователя в клиентском представлении.
type Profile struct {
	ID           string
	Name         string
	Age          int
	Bio          string
	Nationality  string
	Languages    []string
	Interests    []InterestTag
	City         string
	Country      string
	ProfileImage string
	SocialMedia  map[string]string
}

// ProfileUpdate — изменения профиля, которые вводит пользователь.
//
// Nationality принимается списком: формы ввода отдают то строку, то список,
// стор приводит значение к одной строке через ", " до отправки на сервер.
type ProfileUpdate struct {
	UserName     string
	Nationality  []string
	Languages    []string
	Age          int
	Interests    []InterestTag
	Bio          string
	City         string
	Country      string
	ProfileImage string
}
