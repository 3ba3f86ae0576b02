package config

type WorkerKeyStruct struct {
	WrongAnswersQueue string
}

var WorkerKey = &WorkerKeyStruct{
	WrongAnswersQueue: "wrong_answers_queue",
}
